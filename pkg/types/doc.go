// Package types defines the records, graph vocabulary, query results and
// error taxonomy shared by every careergraph package.
//
// # Records
//
// Resume and JobPosting are validated records produced by the schema
// package. They are the only input accepted by the graph writer.
//
// # Graph vocabulary
//
// Label and EdgeType enumerate the persisted schema. Labels are either
// canonical (shared, keyed by the normalized "name") or record-scoped
// (keyed by "id" and never merged across records):
//
//	ref := types.Ref(types.LabelSkill, "python")
//	ref.Label.IsCanonical() // true
//
// # Errors
//
// Every failure surfaced by the client is one of ValidationError,
// ConnectionError, WriteError or QueryError. Use errors.As to inspect them:
//
//	var werr *types.WriteError
//	if errors.As(err, &werr) && werr.Partial {
//	    // earlier steps are committed
//	}
package types
