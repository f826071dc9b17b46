// Package api exposes the deck, study session, statistics, share and sync
// operations over HTTP. Handlers decode and validate requests, call the
// services and map their errors to status codes with safe messages.
package api
