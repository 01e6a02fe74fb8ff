// Package redis provides the Redis-backed snapshot store and distributed locker.
package redis
