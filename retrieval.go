package careergraph

import (
	"context"
	"errors"
	"sort"

	"github.com/soundprediction/careergraph/pkg/telemetry"
	"github.com/soundprediction/careergraph/pkg/types"
)

// queryFailure keeps connection errors as they are and wraps everything
// else in a QueryError.
func (c *Client) queryFailure(ctx context.Context, op string, err error) error {
	c.logger.ErrorContext(ctx, "query failed", "operation", op, "error", err)

	var cerr *types.ConnectionError
	if errors.As(err, &cerr) {
		return cerr
	}
	return &types.QueryError{Op: op, Err: err}
}

// GetResumeSummary implements CareerGraph.
func (c *Client) GetResumeSummary(ctx context.Context, resumeID string) (*types.ResumeSummary, error) {
	ctx = telemetry.WithOperation(ctx, "GetResumeSummary", resumeID)
	if resumeID == "" {
		return nil, nil
	}

	summary, err := c.driver.ResumeSummary(ctx, resumeID)
	if err != nil {
		return nil, c.queryFailure(ctx, "GetResumeSummary", err)
	}
	if summary == nil {
		return nil, nil
	}

	summary.Institutes = sortedDistinct(summary.Institutes)
	summary.Companies = sortedDistinct(summary.Companies)
	summary.Skills = sortedDistinct(summary.Skills)
	return summary, nil
}

// ListResumes implements CareerGraph. Rows are sorted by id.
func (c *Client) ListResumes(ctx context.Context) ([]types.ResumeListing, error) {
	ctx = telemetry.WithOperation(ctx, "ListResumes", "")

	resumes, err := c.driver.ListResumes(ctx)
	if err != nil {
		return nil, c.queryFailure(ctx, "ListResumes", err)
	}
	if resumes == nil {
		resumes = []types.ResumeListing{}
	}
	sort.Slice(resumes, func(i, j int) bool { return resumes[i].ID < resumes[j].ID })
	return resumes, nil
}

// GetSkillDemand implements CareerGraph.
func (c *Client) GetSkillDemand(ctx context.Context) ([]types.SkillDemand, error) {
	ctx = telemetry.WithOperation(ctx, "GetSkillDemand", "")

	demand, err := c.driver.SkillDemand(ctx)
	if err != nil {
		return nil, c.queryFailure(ctx, "GetSkillDemand", err)
	}
	if demand == nil {
		demand = []types.SkillDemand{}
	}
	rankDemand(demand)
	return demand, nil
}

// GetJobMatches implements CareerGraph.
func (c *Client) GetJobMatches(ctx context.Context, resumeSkills []string, limit int) ([]types.JobMatch, error) {
	ctx = telemetry.WithOperation(ctx, "GetJobMatches", "")

	jobs, err := c.driver.JobListings(ctx)
	if err != nil {
		return nil, c.queryFailure(ctx, "GetJobMatches", err)
	}
	matches := matchJobs(c.canon, jobs, resumeSkills, limit)
	c.logger.DebugContext(ctx, "jobs matched", "jobs", len(jobs), "matches", len(matches))
	return matches, nil
}

// GetResumeSkills implements CareerGraph.
func (c *Client) GetResumeSkills(ctx context.Context, resumeID string) ([]string, error) {
	ctx = telemetry.WithOperation(ctx, "GetResumeSkills", resumeID)

	skills, err := c.driver.ResumeSkills(ctx, resumeID)
	if err != nil {
		return nil, c.queryFailure(ctx, "GetResumeSkills", err)
	}
	return sortedDistinct(skills), nil
}

// MatchJobsForResume implements CareerGraph. A resume that does not exist
// has no skills and therefore no matches.
func (c *Client) MatchJobsForResume(ctx context.Context, resumeID string, limit int) ([]types.JobMatch, error) {
	if resumeID == "" {
		return nil, &types.ValidationError{Field: "id", Reason: types.ErrEmptyID.Error()}
	}
	skills, err := c.GetResumeSkills(ctx, resumeID)
	if err != nil {
		return nil, err
	}
	return c.GetJobMatches(ctx, skills, limit)
}

// GetStats implements CareerGraph.
func (c *Client) GetStats(ctx context.Context) (*types.GraphStats, error) {
	ctx = telemetry.WithOperation(ctx, "GetStats", "")

	stats, err := c.driver.Stats(ctx)
	if err != nil {
		return nil, c.queryFailure(ctx, "GetStats", err)
	}
	return stats, nil
}

// sortedDistinct returns a sorted copy of names without duplicates. The
// result is never nil.
func sortedDistinct(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
