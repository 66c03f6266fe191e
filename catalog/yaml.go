package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/tutormesh/core"
)

// File is the on-disk agent seed format:
//
//	agents:
//	  - id: agent-beatrice
//	    name: beatrice
//	    display_name: Beatrice
//	    system_prompt: You are Beatrice...
//	    temperature: 0.8
//	    dos: ["Acknowledge feelings"]
//	    donts: ["Lecture"]
type File struct {
	Agents []fileAgent `yaml:"agents"`
}

type fileAgent struct {
	core.Agent `yaml:",inline"`

	Dos      []string `yaml:"dos"`
	Donts    []string `yaml:"donts"`
	IsActive *bool    `yaml:"is_active"`
}

// LoadYAMLFile reads agents from path.
func LoadYAMLFile(path string) ([]*core.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}
	return LoadYAML(bytes.NewReader(data))
}

// LoadYAML decodes agents from r. Missing ids are derived from the name,
// is_active defaults to true and category to "tutor".
func LoadYAML(r io.Reader) ([]*core.Agent, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode agents file: %w", err)
	}

	now := time.Now().UTC()
	agents := make([]*core.Agent, 0, len(f.Agents))
	for i, fa := range f.Agents {
		a := fa.Agent
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			return nil, fmt.Errorf("%w: agent #%d has no name", core.ErrInvalidArgument, i+1)
		}
		if a.ID == "" {
			a.ID = "agent-" + a.Name
		}
		if a.DisplayName == "" {
			a.DisplayName = a.Name
		}
		if a.Category == "" {
			a.Category = core.CategoryTutor
		}
		a.IsActive = fa.IsActive == nil || *fa.IsActive
		a.DosRules = core.EncodeRules(fa.Dos)
		a.DontsRules = core.EncodeRules(fa.Donts)
		a.CreatedAt = now
		agents = append(agents, &a)
	}
	return agents, nil
}
