/*
Package session runs process instances for a set of definitions.

A Manager binds the definitions to an environment (globals, snapshot store,
distributed locker), serializes every operation on a process instance behind a
per-instance lock, routes timer firings back into the instances and persists a
snapshot after each operation.
*/
package session
