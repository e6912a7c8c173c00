// Package schema validates and normalizes records produced by the extraction
// step before they reach the graph.
//
// Validation rejects null or empty list elements and blank identity fields,
// defaults absent lists to empty, and normalizes dates to YYYY-MM or Present.
// Dates that cannot be normalized are kept verbatim and reported in the
// record's Flags.
//
// The Canonicalizer computes the natural key of shared entities:
//
//	c := schema.NewCanonicalizer(map[string]string{"golang": "go"})
//	c.Key("  GoLang ") // "go"
package schema
