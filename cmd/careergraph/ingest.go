package careergraph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soundprediction/careergraph"
	"github.com/soundprediction/careergraph/pkg/schema"
	"github.com/soundprediction/careergraph/pkg/types"
	"github.com/soundprediction/careergraph/pkg/utils"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest resume or job posting files",
	Long: `Ingest JSON or YAML records into the graph.

Each file is one record. Its id is taken from --id (single file only) or
from the file name without extension, so re-ingesting a file targets the
same node.`,
}

var (
	ingestID          string
	ingestConcurrency int
)

// ingestResult is one line of the ingest report.
type ingestResult struct {
	File  string       `json:"file" yaml:"file"`
	ID    string       `json:"id" yaml:"id"`
	Error string       `json:"error,omitempty" yaml:"error,omitempty"`
	Flags []types.Flag `json:"flags,omitempty" yaml:"flags,omitempty"`
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	for _, kind := range []string{"resume", "job"} {
		kind := kind
		sub := &cobra.Command{
			Use:   kind + " <file...>",
			Short: "Ingest " + kind + " files",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runIngest(cmd, kind, args)
			},
		}
		sub.Flags().StringVar(&ingestID, "id", "", "record id (single file only)")
		sub.Flags().IntVar(&ingestConcurrency, "concurrency", 0, "parallel ingestions (default from ingest.concurrency)")
		ingestCmd.AddCommand(sub)
	}
}

// recordID derives the id of a file: the explicit id or the base name
// without extension.
func recordID(path, explicit string) string {
	if explicit != "" {
		return explicit
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ingestFile decodes and writes one record.
func ingestFile(ctx context.Context, graph careergraph.CareerGraph, kind, path, id string) ([]types.Flag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "resume":
		resume, err := schema.DecodeResume(data)
		if err != nil {
			return nil, err
		}
		return resume.Flags, graph.IngestResume(ctx, resume, id)
	case "job":
		job, err := schema.DecodeJob(data)
		if err != nil {
			return nil, err
		}
		return nil, graph.IngestJob(ctx, job, id)
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
}

// ingestFiles ingests every file with bounded concurrency. Results are in
// input order.
func ingestFiles(ctx context.Context, graph careergraph.CareerGraph, kind string, files []string, explicitID string, concurrency int) []ingestResult {
	pool := utils.NewWorkerPool(concurrency, func(ctx context.Context, path string) ([]types.Flag, error) {
		return ingestFile(ctx, graph, kind, path, recordID(path, explicitID))
	})
	flags, errs := pool.ProcessItems(ctx, files)

	results := make([]ingestResult, len(files))
	for i, path := range files {
		results[i] = ingestResult{File: path, ID: recordID(path, explicitID), Flags: flags[i]}
		if errs[i] != nil {
			results[i].Error = errs[i].Error()
		}
	}
	return results
}

func runIngest(cmd *cobra.Command, kind string, files []string) error {
	if ingestID != "" && len(files) > 1 {
		return errors.New("--id can only be used with a single file")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	concurrency := ingestConcurrency
	if concurrency <= 0 {
		concurrency = a.cfg.Ingest.Concurrency
	}

	results := ingestFiles(cmd.Context(), a.client, kind, files, ingestID, concurrency)

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
			a.logger.Error("ingestion failed", "file", r.File, "id", r.ID, "error", r.Error)
		} else {
			a.logger.Info("ingested "+kind, "file", r.File, "id", r.ID)
		}
	}
	if err := printResult(cmd.OutOrStdout(), results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}
