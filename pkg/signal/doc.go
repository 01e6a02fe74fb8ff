/*
Package signal implements the listener registry through which a process instance
routes named signals to its node instances.

Signal types are plain strings. The engine reserves two prefixes (see package domain):
"Timer-<id>" for timer firings correlated to a node instance, and "Compensation" for
compensation requests. Everything else is a literal name matched against node
configuration.
*/
package signal
