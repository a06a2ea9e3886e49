// Package domain contains the core business entities, value objects, and
// domain logic of the application: tasks, the listing filter and page
// shapes, and the queue jobs emitted when a task's status changes. It is
// independent of any specific infrastructure or delivery mechanism.
package domain
