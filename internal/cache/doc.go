// Package cache is the read-through cache used in front of the task store.
//
// Values are JSON-encoded and written to a Backend (Redis or in-process
// memory). Cache remembers every key it has set so Clear can delete them
// all; that registry lives in process memory and is lost on restart. Backend
// failures never surface as request failures: a failed read is a miss and a
// failed write is logged and reported to the caller as a non-fatal error.
package cache
