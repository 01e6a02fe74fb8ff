package tendril

import (
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/dsl"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/session"
)

// Version is set at build time with -ldflags "-X github.com/aretw0/tendril.Version=...".
var Version = "dev"

// New opens an in-memory session over the given definitions.
func New(defs []*domain.ProcessDefinition, opts ...session.Option) (*session.Manager, error) {
	env := &ports.Environment{Store: memory.NewStore()}
	return session.New(defs, env, session.DefaultConfig(), opts...)
}

// Load reads YAML definition files and opens an in-memory session over them.
func Load(paths []string, opts ...session.Option) (*session.Manager, error) {
	defs, err := dsl.LoadFiles(paths...)
	if err != nil {
		return nil, err
	}
	return New(defs, opts...)
}
