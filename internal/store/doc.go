// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing business rules to remain
// independent of specific database technologies or persistence details.
//
// Implementations live in store/memory, platform/postgres and
// platform/sqlite. All of them mark written entities dirty so the sync
// package can push them to the remote store later.
package store
