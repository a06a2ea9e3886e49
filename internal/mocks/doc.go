// Package mocks provides centralized mock implementations for testing.
//
// MockGateway is an in-memory store.Gateway whose transactions snapshot the
// task table on begin and restore it on rollback. MockJobStore is an
// in-memory queue broker with failure injection. MockTaskService stubs the
// coordinator for handler tests.
//
// Usage:
//
//	gw := mocks.NewMockGateway()
//	owner := gw.AddUser("owner@example.com", "Owner")
//	svc, _ := service.NewTaskService(gw, queue.NewClient(gw.JobStore, nil), c, nil)
package mocks
