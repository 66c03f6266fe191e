package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/tutormesh/collab"
	"github.com/hupe1980/tutormesh/config"
	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/tutor"
)

// rootFlags override the environment configuration.
type rootFlags struct {
	db       string
	agents   string
	provider string
	model    string
	json     bool
}

func newRootCmd(a *app) *cobra.Command {
	var f rootFlags

	root := &cobra.Command{
		Use:           "tutor",
		Short:         "Multi-persona AI tutoring from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			cfg, err := config.Load(func(c *config.Config) {
				if flags.Changed("db") {
					c.DBPath = f.db
				}
				if flags.Changed("agents") {
					c.AgentsFile = f.agents
				}
				if flags.Changed("provider") {
					c.Provider = f.provider
				}
				if flags.Changed("model") {
					c.Model = f.model
				}
			})
			if err != nil {
				return err
			}
			return a.open(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.db, "db", "", "SQLite database path (empty keeps state in memory)")
	pf.StringVar(&f.agents, "agents", "", "YAML file with the tutor catalog")
	pf.StringVar(&f.provider, "provider", config.ProviderMock, "completion provider: mock, openai, anthropic, gemini")
	pf.StringVar(&f.model, "model", "", "provider model id")
	pf.BoolVar(&f.json, "json", false, "print results as JSON")

	root.AddCommand(
		newAgentsCmd(a, &f),
		newModeCmd(a, &f),
		newChatCmd(a, &f),
		newHistoryCmd(a, &f),
		newClearCmd(a),
		newLogsCmd(a, &f),
		newStatsCmd(a, &f),
	)
	return root
}

func newAgentsCmd(a *app, f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the active tutors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			agents, err := a.svc.ListAgents(cmd.Context())
			if err != nil {
				return err
			}
			if f.json {
				return writeJSON(cmd.OutOrStdout(), agents)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDISPLAY NAME\tPERSONALITY")
			for _, ag := range agents {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ag.ID, ag.Name, ag.Label(), ag.Personality)
			}
			return tw.Flush()
		},
	}
}

func newModeCmd(a *app, f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mode <user> <manual|router|random|collaborative>",
		Short: "Switch a user's routing mode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.svc.UpdateMode(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if f.json {
				return writeJSON(cmd.OutOrStdout(), sess)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now in %s mode\n", sess.UserID, sess.Mode)
			return nil
		},
	}
}

func newChatCmd(a *app, f *rootFlags) *cobra.Command {
	var (
		agentID   string
		style     string
		maxAgents int
	)

	cmd := &cobra.Command{
		Use:   "chat <user> <message>",
		Short: "Send a message and print the tutor's reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := tutor.SendRequest{
				UserID:  args[0],
				AgentID: agentID,
				Message: strings.Join(args[1:], " "),
			}
			if cmd.Flags().Changed("style") || cmd.Flags().Changed("max-agents") {
				s, err := collab.ParseStyle(style)
				if err != nil {
					return err
				}
				req.Collaboration = &collab.Options{Style: s, MaxAgents: maxAgents}
			}

			res, err := a.svc.SendMessage(cmd.Context(), req)
			if err != nil {
				return err
			}
			if f.json {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printReply(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "agent id (defaults to the session's active agent)")
	cmd.Flags().StringVar(&style, "style", "", "collaboration style: parallel, sequential, debate, random")
	cmd.Flags().IntVar(&maxAgents, "max-agents", 0, "maximum collaborators selected by keyword")
	return cmd
}

func printReply(w io.Writer, res *tutor.SendResult) {
	speaker := "Tutors"
	if res.Agent != nil {
		speaker = res.Agent.Label()
	}
	fmt.Fprintf(w, "%s:\n%s\n", speaker, res.AssistantMessage.Content)

	if r := res.Routing; r != nil {
		fmt.Fprintf(w, "\n[%s] %s (confidence %.2f): %s\n", r.Method, r.SelectedAgent, r.Confidence, r.Reason)
		if r.FallbackReason != "" {
			fmt.Fprintf(w, "fallback: %s\n", r.FallbackReason)
		}
	}
	if c := res.Collaborative; c != nil {
		fmt.Fprintf(w, "\n[%s] participants: %s\n", c.Style, strings.Join(c.Participants, ", "))
		if len(c.FailedAgents) > 0 {
			fmt.Fprintf(w, "failed: %s\n", strings.Join(c.FailedAgents, ", "))
		}
	}
}

func newHistoryCmd(a *app, f *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <user> <agent>",
		Short: "Print the conversation between a user and a tutor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := a.svc.GetOrCreateConversation(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			msgs, err := a.svc.GetMessageHistory(cmd.Context(), conv.ID, limit)
			if err != nil {
				return err
			}
			if f.json {
				return writeJSON(cmd.OutOrStdout(), msgs)
			}
			for _, m := range msgs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-9s %s\n", m.CreatedAt.Format(time.RFC3339), m.Role, m.Content)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", core.DefaultHistoryLimit, "maximum number of messages")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <user> <agent>",
		Short: "Delete the messages of a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.ClearConversation(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "conversation cleared")
			return nil
		},
	}
}

func newLogsCmd(a *app, f *rootFlags) *cobra.Command {
	var (
		filter   core.LogFilter
		event    string
		mode     string
		from, to string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the interaction log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if filter.Start, err = parseTime(from); err != nil {
				return err
			}
			if filter.End, err = parseTime(to); err != nil {
				return err
			}
			filter.EventType = core.EventType(event)
			if mode != "" {
				if filter.Mode, err = core.ParseMode(mode); err != nil {
					return err
				}
			}

			logs, err := a.svc.GetInteractionLogs(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if f.json {
				return writeJSON(cmd.OutOrStdout(), logs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tUSER\tEVENT\tMODE\tAGENT\tLATENCY")
			for _, l := range logs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					l.CreatedAt.Format(time.RFC3339), l.UserID, l.EventType, l.Mode, l.AgentName, l.ResponseTime)
			}
			return tw.Flush()
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&filter.UserID, "user", "", "filter by user id")
	fl.StringVar(&filter.SessionID, "session", "", "filter by session id")
	fl.StringVar(&filter.AgentID, "agent", "", "filter by agent id")
	fl.StringVar(&event, "event", "", "filter by event type")
	fl.StringVar(&mode, "mode", "", "filter by mode")
	fl.StringVar(&from, "from", "", "inclusive lower bound (RFC3339)")
	fl.StringVar(&to, "to", "", "exclusive upper bound (RFC3339)")
	fl.IntVar(&filter.Limit, "limit", 100, "maximum number of records")
	return cmd
}

func newStatsCmd(a *app, f *rootFlags) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate the interaction log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseTime(from)
			if err != nil {
				return err
			}
			end, err := parseTime(to)
			if err != nil {
				return err
			}

			st, err := a.svc.GetStats(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			if f.json {
				return writeJSON(cmd.OutOrStdout(), st)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "interactions: %d\nsessions: %d\nmessages: %d\naverage response time: %s\n",
				st.TotalInteractions, st.TotalSessions, st.TotalMessages, st.AverageResponseTime)
			for _, m := range slices.Sorted(maps.Keys(st.ModeBreakdown)) {
				fmt.Fprintf(w, "mode %s: %d\n", m, st.ModeBreakdown[m])
			}
			for _, ag := range slices.Sorted(maps.Keys(st.AgentBreakdown)) {
				fmt.Fprintf(w, "agent %s: %d\n", ag, st.AgentBreakdown[ag])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "inclusive lower bound (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "exclusive upper bound (RFC3339)")
	return cmd
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not RFC3339", core.ErrInvalidArgument, s)
	}
	return &t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
