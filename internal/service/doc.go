// Package service contains the application-specific use cases and business
// logic. It orchestrates domain objects and the storage gateway (defined in
// internal/store) to fulfill application features.
//
// The task service is the only writer of tasks. Each mutation follows the
// same sequence:
//
//  1. Transaction: the task write runs inside gateway.RunInTx and either
//     commits or rolls back as a whole.
//  2. Notification: after commit, a task-status-update job is enqueued on
//     create and on any update that changed the status. With
//     WithTransactionalOutbox the job is written inside the transaction.
//  3. Invalidation: the task's cache entry and every cached listing are
//     dropped before the call returns.
//
// Reads go through the cache first and fall back to the gateway. A failing
// cache degrades to direct reads; it never fails an operation.
//
// Error Handling:
//   - Service methods return sentinel errors (ErrTaskNotFound) for expected
//     conditions
//   - Other failures are wrapped in *TaskServiceError, keeping the cause
//     available to errors.Is/errors.As
//   - The API layer maps service errors to HTTP status codes
package service
