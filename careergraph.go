package careergraph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/careergraph/pkg/driver"
	"github.com/soundprediction/careergraph/pkg/schema"
	"github.com/soundprediction/careergraph/pkg/types"
	"github.com/soundprediction/careergraph/pkg/utils"
)

// CareerGraph builds a knowledge graph from resumes and job postings and
// answers aggregate and matching queries over it.
type CareerGraph interface {
	// IngestResume writes a validated resume under the caller-supplied id.
	// Re-ingesting under the same id targets the same Resume node.
	IngestResume(ctx context.Context, resume *types.Resume, resumeID string) error

	// IngestJob writes a validated job posting under the caller-supplied id.
	IngestJob(ctx context.Context, job *types.JobPosting, jobID string) error

	// GetResumeSummary returns the institutes, companies and skills linked
	// to a resume, or nil when no resume has the id.
	GetResumeSummary(ctx context.Context, resumeID string) (*types.ResumeSummary, error)

	// ListResumes returns id, name and email of every resume.
	ListResumes(ctx context.Context) ([]types.ResumeListing, error)

	// GetSkillDemand ranks skills by the number of incoming requirement and
	// usage edges.
	GetSkillDemand(ctx context.Context) ([]types.SkillDemand, error)

	// GetJobMatches ranks jobs by the number of required skills found in
	// resumeSkills. A limit of zero or less returns every match.
	GetJobMatches(ctx context.Context, resumeSkills []string, limit int) ([]types.JobMatch, error)

	// GetResumeSkills returns the skills of one resume, or of all resumes
	// when resumeID is empty.
	GetResumeSkills(ctx context.Context, resumeID string) ([]string, error)

	// MatchJobsForResume runs GetJobMatches with the skills stored for a resume.
	MatchJobsForResume(ctx context.Context, resumeID string, limit int) ([]types.JobMatch, error)

	// GetStats returns node counts per label and edge counts per type.
	GetStats(ctx context.Context) (*types.GraphStats, error)

	// CreateIndices creates uniqueness constraints for node keys.
	CreateIndices(ctx context.Context) error

	// VerifyConnectivity checks that the datastore is reachable.
	VerifyConnectivity(ctx context.Context) error

	// Close closes all connections and cleans up resources.
	Close(ctx context.Context) error
}

// EdgePolicy decides which relationships are deduplicated on re-ingestion.
type EdgePolicy string

const (
	// EdgePolicyIdempotent merges every edge on (source, type, target).
	EdgePolicyIdempotent EdgePolicy = "idempotent"
	// EdgePolicyLegacy deduplicates only HAS_SKILL and the job skill edge;
	// every other edge is created again on each ingestion.
	EdgePolicyLegacy EdgePolicy = "legacy"
)

// Config holds configuration for the client.
type Config struct {
	EdgePolicy EdgePolicy
	// StepCommit commits each ingestion step on its own. A failure then
	// leaves earlier steps in the graph. When false the whole ingestion is
	// one transaction.
	StepCommit bool
	// Aliases maps alternative entity spellings to a preferred name, e.g.
	// "golang" -> "go". Applied after normalization.
	Aliases map[string]string
}

// DefaultConfig returns idempotent edges with atomic ingestion.
func DefaultConfig() *Config {
	return &Config{EdgePolicy: EdgePolicyIdempotent}
}

// Client is the main implementation of the CareerGraph interface.
type Client struct {
	driver driver.GraphDriver
	config *Config
	canon  *schema.Canonicalizer
	locks  *utils.KeyedMutex
	logger *slog.Logger
}

var _ CareerGraph = (*Client)(nil)

// NewClient creates a new client on top of an open driver. The client owns
// the driver: Close closes it.
func NewClient(d driver.GraphDriver, config *Config, logger *slog.Logger) (*Client, error) {
	if d == nil {
		return nil, fmt.Errorf("graph driver is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	switch config.EdgePolicy {
	case "":
		config.EdgePolicy = EdgePolicyIdempotent
	case EdgePolicyIdempotent, EdgePolicyLegacy:
	default:
		return nil, fmt.Errorf("unknown edge policy %q", config.EdgePolicy)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		driver: d,
		config: config,
		canon:  schema.NewCanonicalizer(config.Aliases),
		locks:  utils.NewKeyedMutex(),
		logger: logger,
	}, nil
}

// GetDriver returns the underlying graph driver
func (c *Client) GetDriver() driver.GraphDriver {
	return c.driver
}

// CreateIndices implements CareerGraph.
func (c *Client) CreateIndices(ctx context.Context) error {
	if err := c.driver.CreateIndices(ctx); err != nil {
		return fmt.Errorf("failed to create indices: %w", err)
	}
	return nil
}

// VerifyConnectivity implements CareerGraph.
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// Close implements CareerGraph.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}
