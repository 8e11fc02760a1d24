// Package redisconn dials Redis with bounded retry for the Redis-backed
// session store and broadcast channel, and exposes a health probe.
package redisconn
