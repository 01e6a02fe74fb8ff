// Package http exposes a session over a chi REST API: start and inspect process
// instances, deliver signals, complete nodes and work items, fire timers.
package http
