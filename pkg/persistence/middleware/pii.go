package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Mask replaces the values of masked keys.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks, before saving, every variable and work item
// parameter or result whose key matches one of the patterns. Nested maps are
// walked. The live instance is never touched.
func NewPIIMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &piiMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, key string, snapshot *domain.ProcessSnapshot) error {
	masked := snapshot.Clone()
	masked.Variables = m.mask(masked.Variables)
	for i := range masked.WorkItems {
		masked.WorkItems[i].Parameters = m.mask(masked.WorkItems[i].Parameters)
		masked.WorkItems[i].Results = m.mask(masked.WorkItems[i].Results)
	}
	return m.next.Save(ctx, key, masked)
}

func (m *piiMiddleware) Load(ctx context.Context, key string) (*domain.ProcessSnapshot, error) {
	return m.next.Load(ctx, key)
}

func (m *piiMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// mask returns a masked copy; values are shared only when they are not maps.
func (m *piiMiddleware) mask(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch {
		case m.matches(k):
			out[k] = Mask
		case isMap(v):
			out[k] = m.mask(v.(map[string]any))
		default:
			out[k] = v
		}
	}
	return out
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func isMap(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}
