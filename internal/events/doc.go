// Package events provides types and interfaces for an event-driven architecture.
//
// Services emit events after their work has committed without knowing which
// handlers will process them. The study pipeline publishes SessionFlushed
// and the deck service publishes CardsChanged; the sync package subscribes
// to both and schedules remote pushes.
//
// The primary components are:
//   - Event: a typed notification about one user's data
//   - EventHandler: Interface for components that can handle events
//   - EventEmitter: Interface for components that can emit events
package events
