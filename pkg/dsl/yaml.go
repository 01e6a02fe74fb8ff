package dsl

import (
	"fmt"
	"os"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// processDoc is the loader view of a definition file.
// It uses "mapstructure" tags to match the YAML keys.
type processDoc struct {
	ID    string     `mapstructure:"id"`
	Name  string     `mapstructure:"name"`
	Nodes []nodeDoc `mapstructure:"nodes"`
}

type nodeDoc struct {
	ID             string            `mapstructure:"id"`
	Name           string            `mapstructure:"name"`
	Kind           string            `mapstructure:"kind"`
	UniqueID       string            `mapstructure:"unique_id"`
	Metadata       map[string]string `mapstructure:"metadata"`
	Event          string            `mapstructure:"event"`
	AttachedTo     string            `mapstructure:"attached_to"`
	CancelActivity bool              `mapstructure:"cancel_activity"`
	Delay          time.Duration     `mapstructure:"delay"`
	Work           string            `mapstructure:"work"`
	Outputs        []outputDoc      `mapstructure:"outputs"`
	Next           []string          `mapstructure:"next"`
	Nodes          []nodeDoc        `mapstructure:"nodes"`
}

type outputDoc struct {
	From []string `mapstructure:"from"`
	To   string   `mapstructure:"to"`
}

// Parse decodes a YAML process definition and validates it.
// "next" and "from" accept a single value or a list.
func Parse(data []byte) (*domain.ProcessDefinition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}

	var doc processDoc
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &doc,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("definition missing id")
	}

	def := &domain.ProcessDefinition{
		ID:    doc.ID,
		Name:  doc.Name,
		Nodes: convert(doc.Nodes),
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definition %q: %w", def.ID, err)
	}
	return def, nil
}

// LoadFile reads and parses a YAML definition file.
func LoadFile(path string) (*domain.ProcessDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// LoadFiles loads every path, stopping at the first error.
func LoadFiles(paths ...string) ([]*domain.ProcessDefinition, error) {
	defs := make([]*domain.ProcessDefinition, 0, len(paths))
	for _, p := range paths {
		def, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func convert(docs []nodeDoc) []*domain.NodeDefinition {
	nodes := make([]*domain.NodeDefinition, 0, len(docs))
	for _, s := range docs {
		kind := domain.NodeKind(s.Kind)
		if kind == "" {
			kind = domain.KindTask
		}
		n := &domain.NodeDefinition{
			ID:             s.ID,
			Name:           s.Name,
			Kind:           kind,
			Metadata:       s.Metadata,
			EventType:      s.Event,
			AttachedTo:     s.AttachedTo,
			CancelActivity: s.CancelActivity,
			TimerDelay:     s.Delay,
			WorkName:       s.Work,
			Next:           s.Next,
		}
		if s.UniqueID != "" {
			if n.Metadata == nil {
				n.Metadata = make(map[string]string)
			}
			n.Metadata[domain.MetaUniqueID] = s.UniqueID
		}
		for _, o := range s.Outputs {
			n.OutAssociations = append(n.OutAssociations, domain.DataAssociation{Sources: o.From, Target: o.To})
		}
		if len(s.Nodes) > 0 {
			n.Nodes = convert(s.Nodes)
		}
		nodes = append(nodes, n)
	}
	return nodes
}
