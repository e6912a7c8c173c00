package driver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/soundprediction/careergraph/pkg/types"
)

// GraphProvider represents the type of graph database provider
type GraphProvider string

const (
	GraphProviderNeo4j  GraphProvider = "neo4j"
	GraphProviderBadger GraphProvider = "badger"
)

// ErrNodeNotFound is returned by Relate when an endpoint does not exist.
var ErrNodeNotFound = errors.New("node not found")

// EdgeMode selects how Relate treats an existing edge of the same type
// between the same endpoints.
type EdgeMode int

const (
	// EdgeCreate always adds a new edge.
	EdgeCreate EdgeMode = iota
	// EdgeMerge reuses the edge keyed by (source, type, target, entry) and
	// refreshes its properties.
	EdgeMerge
)

func (m EdgeMode) String() string {
	if m == EdgeMerge {
		return "merge"
	}
	return "create"
}

// Upsert creates a node if no node with the same label and key exists.
// OnCreate is applied only on creation. FillMissing is applied on every call
// but only to properties the node does not have yet.
type Upsert struct {
	Ref         types.NodeRef
	OnCreate    types.Properties
	FillMissing types.Properties
}

// Relation describes an edge between two existing nodes.
type Relation struct {
	From       types.NodeRef
	To         types.NodeRef
	Type       types.EdgeType
	Properties types.Properties
	Mode       EdgeMode
	// Entry distinguishes parallel edges of one type between the same
	// endpoints, such as two degrees at one institute. It is stored in the
	// PropEntry property. Empty means one edge per (source, type, target).
	Entry string
}

// PropEntry holds Relation.Entry on the stored edge.
const PropEntry = "entry"

// WriteTx is the set of write primitives available inside ExecuteWrite.
// Implementations are not safe for concurrent use.
type WriteTx interface {
	// UpsertNode creates a canonical node, or applies first-writer-wins
	// attribute rules to the existing one.
	UpsertNode(ctx context.Context, u Upsert) error
	// MergeRecord creates or updates a record-scoped node, overwriting the
	// given properties.
	MergeRecord(ctx context.Context, ref types.NodeRef, props types.Properties) error
	// Relate creates or merges an edge. Both endpoints must exist.
	Relate(ctx context.Context, r Relation) error
}

// GraphReader answers the read-side queries of the client.
type GraphReader interface {
	// ResumeSummary returns nil, nil when no resume has the id.
	ResumeSummary(ctx context.Context, resumeID string) (*types.ResumeSummary, error)
	ListResumes(ctx context.Context) ([]types.ResumeListing, error)
	// ResumeSkills returns distinct skill display names of one resume, or of
	// every resume when resumeID is empty.
	ResumeSkills(ctx context.Context, resumeID string) ([]string, error)
	// SkillDemand returns unsorted incoming demand-edge counts per Skill.
	SkillDemand(ctx context.Context) ([]types.SkillDemand, error)
	// JobListings returns every Job with the display names and keys of its
	// required skills.
	JobListings(ctx context.Context) ([]types.JobListing, error)
	Stats(ctx context.Context) (*types.GraphStats, error)
}

// GraphDriver is a graph backend.
type GraphDriver interface {
	GraphReader

	// ExecuteWrite runs fn in one write transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise. fn may be
	// invoked more than once when the backend retries a transient failure.
	ExecuteWrite(ctx context.Context, fn func(ctx context.Context, tx WriteTx) error) error

	CreateIndices(ctx context.Context) error
	VerifyConnectivity(ctx context.Context) error
	Provider() GraphProvider
	Close(ctx context.Context) error
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateRef(ref types.NodeRef) error {
	if !ref.Label.Valid() {
		return fmt.Errorf("unknown label %q", ref.Label)
	}
	if ref.Key == "" {
		return fmt.Errorf("%s: empty %s", ref.Label, ref.Label.KeyProperty())
	}
	if strings.IndexByte(ref.Key, 0) >= 0 {
		return fmt.Errorf("%s: %s contains NUL", ref.Label, ref.Label.KeyProperty())
	}
	return nil
}

func validateRelation(r Relation) error {
	if !r.Type.Valid() {
		return fmt.Errorf("unknown relationship type %q", r.Type)
	}
	if err := validateRef(r.From); err != nil {
		return err
	}
	if err := validateRef(r.To); err != nil {
		return err
	}
	if strings.IndexByte(r.Entry, 0) >= 0 {
		return fmt.Errorf("%s: entry contains NUL", r.Type)
	}
	if _, ok := r.Properties[PropEntry]; ok {
		return fmt.Errorf("%s: property %q is reserved", r.Type, PropEntry)
	}
	return validateProperties(r.Properties)
}

func validateProperties(props ...types.Properties) error {
	for _, p := range props {
		for k := range p {
			if !identifierPattern.MatchString(k) {
				return fmt.Errorf("invalid property name %q", k)
			}
		}
	}
	return nil
}
