// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing business rules to remain
// independent of specific database technologies or persistence details.
//
// Writes are scoped by an explicit transaction handle (see Gateway and Tx)
// rather than a process-wide transaction manager.
package store
