// Package utils provides the concurrency helpers used around the graph client:
//   - KeyedMutex serializes ingestions of the same record id (keyed_mutex.go)
//   - ConcurrentExecutor and WorkerPool bound batch work (concurrent.go)
//   - RecoverAsError and RecoverWithCallback turn panics into errors (recovery.go)
package utils
