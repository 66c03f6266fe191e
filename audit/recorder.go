package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/logging"
)

// DefaultWriteTimeout bounds a single detached sink write.
const DefaultWriteTimeout = 5 * time.Second

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	Timeout time.Duration
	Logger  logging.Logger
}

// Recorder forwards interaction logs to a sink on a best-effort basis.
type Recorder struct {
	sink core.AuditSink
	opts RecorderOptions
	wg   sync.WaitGroup
}

// NewRecorder creates a Recorder. A nil sink discards every record.
func NewRecorder(sink core.AuditSink, optFns ...func(o *RecorderOptions)) *Recorder {
	opts := RecorderOptions{Timeout: DefaultWriteTimeout}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultWriteTimeout
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Recorder{sink: sink, opts: opts}
}

// Record schedules l for writing and returns immediately. The write outlives
// ctx cancellation but keeps its values.
func (r *Recorder) Record(ctx context.Context, l *core.InteractionLog) {
	if r == nil || r.sink == nil || l == nil {
		return
	}
	rec := l.Clone()
	if rec.ID == "" {
		rec.ID = core.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	detached := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.write(detached, rec); err != nil {
			r.opts.Logger.Warn("Failed to record interaction", "event", string(rec.EventType), "session_id", rec.SessionID, "error", err)
		}
	}()
}

func (r *Recorder) write(ctx context.Context, l *core.InteractionLog) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("audit sink panicked: %v", p)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	return r.sink.Record(ctx, l)
}

// Wait blocks until every scheduled write has finished.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
