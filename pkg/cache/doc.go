// Package cache holds the observable in-memory state a Connection
// accumulates from inbound frames: the connected-sensor inventory and
// the three per-reading-kind ring buffers. Writes come from the inbound
// message path and from the Connection's inventory and history fetch
// calls, which run on the caller's goroutine; each cache's mutex
// serializes those writers and guards concurrent reads from observer
// goroutines.
package cache
