/*
Package timer schedules timer firings for node instances.

Each firing carries the id of the node instance that scheduled it. The Manager never
mutates process state itself: due timers are handed, one at a time, to a Dispatcher,
which is expected to enter the owning process instance's serialized execution line
(see session.Manager) and translate the firing into a "Timer-<id>" signal.
*/
package timer
