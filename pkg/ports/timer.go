package ports

import "github.com/aretw0/tendril/pkg/domain"

// TimerService schedules firings on behalf of node instances.
// Firings are delivered asynchronously to whoever owns the service; the service
// itself never touches node-instance state.
type TimerService interface {
	// Schedule registers a timer and returns its id.
	Schedule(timer domain.TimerInstance) int64

	// Cancel removes a pending timer. It returns false if the timer already fired or never existed.
	Cancel(timerID int64) bool
}
