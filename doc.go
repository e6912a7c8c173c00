// Package careergraph builds a knowledge graph from structured resumes and
// job postings and answers questions over it.
//
// Resumes and jobs arrive as validated records (see pkg/schema). The client
// decomposes each record into canonical entities shared across records
// (institutes, companies, skills, positions, ...) and record-scoped nodes
// (the Resume or Job itself, projects), then links them with typed edges.
// Canonical entities are keyed by their normalized name, so "MIT " and
// "mit" land on the same node.
//
// # Basic Usage
//
//	d, err := driver.NewBadgerDriver(driver.BadgerOptions{Dir: "./careergraph_db"}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := careergraph.NewClient(d, careergraph.DefaultConfig(), logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	resume, err := schema.DecodeResume(data)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := client.IngestResume(ctx, resume, "alice"); err != nil {
//		log.Fatal(err)
//	}
//
// # Querying
//
//	summary, _ := client.GetResumeSummary(ctx, "alice")
//	demand, _ := client.GetSkillDemand(ctx)
//	matches, _ := client.GetJobMatches(ctx, []string{"Go", "SQL"}, 10)
//
// # Re-ingestion
//
// With EdgePolicyIdempotent (the default) ingesting the same record twice
// leaves the graph unchanged. EdgePolicyLegacy deduplicates only skill
// edges and creates every other relationship again.
//
// # Errors
//
// Failures are reported as *types.ValidationError, *types.ConnectionError,
// *types.WriteError or *types.QueryError.
package careergraph
