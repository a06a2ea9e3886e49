// Package postgres implements the storage gateway and the durable work queue
// broker on PostgreSQL through the pgx stdlib driver.
//
// PostgresTaskStore is the only code that knows the tasks schema.
// PostgresJobStore keeps queue jobs in the queue_jobs table and hands them to
// workers with FOR UPDATE SKIP LOCKED. Gateway ties both to one transaction.
package postgres
