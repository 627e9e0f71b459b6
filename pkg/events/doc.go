// Package events provides the observer capability shared by Connection,
// Manager, and Client: subscribe, unsubscribe, emit. It replaces
// inheritance-based event wiring with an explicit, id-keyed callback
// registry guarded by a mutex.
package events
