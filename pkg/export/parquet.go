// Package export writes graph query results to Parquet files for offline
// analysis.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/careergraph/pkg/types"
	"github.com/soundprediction/careergraph/pkg/utils"
)

// Source is the subset of the client an export reads from.
type Source interface {
	ListResumes(ctx context.Context) ([]types.ResumeListing, error)
	GetSkillDemand(ctx context.Context) ([]types.SkillDemand, error)
	MatchJobsForResume(ctx context.Context, resumeID string, limit int) ([]types.JobMatch, error)
}

const (
	dirResumes     = "resumes"
	dirSkillDemand = "skill_demand"
	dirJobMatches  = "job_matches"
)

// ParquetExporter writes one file per call under baseDir/<table>/.
type ParquetExporter struct {
	baseDir     string
	now         func() time.Time
	concurrency int
}

// NewParquetExporter creates the table directories under baseDir.
func NewParquetExporter(baseDir string) (*ParquetExporter, error) {
	for _, d := range []string{dirResumes, dirSkillDemand, dirJobMatches} {
		if err := os.MkdirAll(filepath.Join(baseDir, d), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return &ParquetExporter{baseDir: baseDir, now: time.Now}, nil
}

// WithConcurrency bounds the number of resumes matched at once during
// Export. Non-positive values use utils.DefaultConcurrency.
func (w *ParquetExporter) WithConcurrency(n int) *ParquetExporter {
	w.concurrency = n
	return w
}

// JobMatchRow is the flattened schema of one job match.
type JobMatchRow struct {
	ResumeID       string `parquet:"resume_id"`
	Rank           int32  `parquet:"rank"`
	JobID          string `parquet:"job_id"`
	Title          string `parquet:"title"`
	Company        string `parquet:"company"`
	Location       string `parquet:"location"`
	SkillCount     int32  `parquet:"skill_count"`
	MatchingSkills string `parquet:"matching_skills"` // comma separated
}

func (w *ParquetExporter) path(dir, prefix string) string {
	name := fmt.Sprintf("%s_%d.parquet", prefix, w.now().UnixNano())
	return filepath.Join(w.baseDir, dir, name)
}

// WriteResumes writes resume listings. It returns the file path, or "" when
// there was nothing to write.
func (w *ParquetExporter) WriteResumes(ctx context.Context, resumes []types.ResumeListing) (string, error) {
	if len(resumes) == 0 {
		return "", nil
	}
	path := w.path(dirResumes, "resumes")
	if err := parquet.WriteFile(path, resumes); err != nil {
		return "", fmt.Errorf("failed to write resumes: %w", err)
	}
	return path, nil
}

// WriteSkillDemand writes ranked skill demand.
func (w *ParquetExporter) WriteSkillDemand(ctx context.Context, demand []types.SkillDemand) (string, error) {
	if len(demand) == 0 {
		return "", nil
	}
	path := w.path(dirSkillDemand, "skill_demand")
	if err := parquet.WriteFile(path, demand); err != nil {
		return "", fmt.Errorf("failed to write skill demand: %w", err)
	}
	return path, nil
}

// WriteJobMatches writes the ranked matches of one resume.
func (w *ParquetExporter) WriteJobMatches(ctx context.Context, resumeID string, matches []types.JobMatch) (string, error) {
	if len(matches) == 0 {
		return "", nil
	}

	rows := make([]JobMatchRow, 0, len(matches))
	for i, m := range matches {
		rows = append(rows, JobMatchRow{
			ResumeID:       resumeID,
			Rank:           int32(i + 1),
			JobID:          m.Job.ID,
			Title:          m.Job.Title,
			Company:        m.Job.Company,
			Location:       m.Job.Location,
			SkillCount:     int32(m.SkillCount),
			MatchingSkills: strings.Join(m.MatchingSkills, ","),
		})
	}

	path := w.path(dirJobMatches, "job_matches_"+safeName(resumeID))
	if err := parquet.WriteFile(path, rows); err != nil {
		return "", fmt.Errorf("failed to write job matches: %w", err)
	}
	return path, nil
}

// Summary counts the rows written by Export.
type Summary struct {
	Resumes    int
	Skills     int
	JobMatches int
	Files      []string
}

// Export writes every resume, the skill demand ranking and the top matchLimit
// job matches of each resume.
func (w *ParquetExporter) Export(ctx context.Context, src Source, matchLimit int) (*Summary, error) {
	summary := &Summary{}
	record := func(path string, err error) error {
		if err != nil {
			return err
		}
		if path != "" {
			summary.Files = append(summary.Files, path)
		}
		return nil
	}

	resumes, err := src.ListResumes(ctx)
	if err != nil {
		return nil, err
	}
	if err := record(w.WriteResumes(ctx, resumes)); err != nil {
		return nil, err
	}
	summary.Resumes = len(resumes)

	demand, err := src.GetSkillDemand(ctx)
	if err != nil {
		return nil, err
	}
	if err := record(w.WriteSkillDemand(ctx, demand)); err != nil {
		return nil, err
	}
	summary.Skills = len(demand)

	// matches are fetched concurrently and written in resume order
	matches := make([][]types.JobMatch, len(resumes))
	tasks := make([]func() error, len(resumes))
	for i, r := range resumes {
		tasks[i] = func() error {
			m, err := src.MatchJobsForResume(ctx, r.ID, matchLimit)
			if err != nil {
				return fmt.Errorf("match resume %s: %w", r.ID, err)
			}
			matches[i] = m
			return nil
		}
	}
	if err := errors.Join(utils.NewConcurrentExecutor(w.concurrency).Execute(ctx, tasks...)...); err != nil {
		return nil, err
	}

	for i, r := range resumes {
		if err := record(w.WriteJobMatches(ctx, r.ID, matches[i])); err != nil {
			return nil, err
		}
		summary.JobMatches += len(matches[i])
	}
	return summary, nil
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
