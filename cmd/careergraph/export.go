package careergraph

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/soundprediction/careergraph/pkg/export"
)

var (
	exportDir        string
	exportMatchLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export resumes, skill demand and job matches to Parquet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		w, err := export.NewParquetExporter(exportDir)
		if err != nil {
			return err
		}
		summary, err := w.WithConcurrency(a.cfg.Ingest.Concurrency).Export(cmd.Context(), a.client, exportMatchLimit)
		if err != nil {
			return err
		}
		a.logger.Info("export committed",
			"dir", exportDir,
			"resumes", summary.Resumes,
			"skills", summary.Skills,
			"job_matches", summary.JobMatches)
		return printResult(cmd.OutOrStdout(), summary.Files)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "out", "./export", "output directory")
	exportCmd.Flags().IntVar(&exportMatchLimit, "match-limit", 10, "job matches per resume (0 for all)")
	rootCmd.AddCommand(exportCmd)
}
