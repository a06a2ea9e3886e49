// Package queue is the work queue client and its workers.
//
// Client durably enqueues jobs into a store.JobStore and returns once the
// broker has accepted them. Runner polls the broker, hands due jobs to a
// bounded pool of workers and applies each job's retry policy: failed jobs
// are rescheduled with backoff until they run out of attempts, then marked
// failed and reported.
package queue
