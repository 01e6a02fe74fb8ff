package instance

import (
	"log/slog"
	"maps"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Option configures a ProcessInstance.
type Option func(*ProcessInstance)

// WithTimerService enables timer events. Without it timer events only react to
// "Timer-<id>" signals sent explicitly.
func WithTimerService(timers ports.TimerService) Option {
	return func(p *ProcessInstance) {
		p.timers = timers
	}
}

// WithLifecycleHooks registers observability hooks.
// Hooks run while the instance is locked and must not call back into it.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(p *ProcessInstance) {
		p.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *ProcessInstance) {
		p.logger = logger
	}
}

// WithGlobals binds read-only globals used as a fallback for variable lookups.
func WithGlobals(globals map[string]any) Option {
	return func(p *ProcessInstance) {
		p.globals = maps.Clone(globals)
	}
}

// WithVariables seeds the process variables.
func WithVariables(vars map[string]any) Option {
	return func(p *ProcessInstance) {
		maps.Copy(p.variables, vars)
	}
}
