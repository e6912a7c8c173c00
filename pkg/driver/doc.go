// Package driver provides the graph storage backends used by careergraph.
//
// The GraphDriver interface exposes one transactional write entry point
// (ExecuteWrite) and a handful of read queries shaped for resume and job
// retrieval. Two implementations ship with the package:
//   - Neo4j: pooled neo4j-go-driver client, Cypher MERGE for idempotent writes
//   - Badger: embedded key-value store, usable on disk or in memory
//
// # Usage
//
//	d, err := driver.NewNeo4jDriver(ctx, driver.Neo4jConfig{URI: uri, Username: user, Password: pass}, logger)
//
//	d, err := driver.NewBadgerDriver(driver.BadgerOptions{Dir: "./careergraph_db"}, logger)
//
// Either may be wrapped with WithCircuitBreaker so that repeated connection
// failures fail fast instead of piling up on an unreachable database.
//
// # Thread Safety
//
// All driver implementations are safe for concurrent use from multiple goroutines.
//
// # Type Helpers
//
// type_helpers.go holds checked conversions for Neo4j record values so that
// unexpected column types surface as errors rather than panics.
package driver
