// Package task runs background work off the request path. Remote
// synchronization is queued here so that flushing a study session never
// waits on network I/O.
package task
