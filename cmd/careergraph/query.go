package careergraph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <resume-id>",
	Short: "Show the institutes, companies and skills of a resume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		summary, err := a.client.GetResumeSummary(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if summary == nil {
			return fmt.Errorf("resume %q not found", args[0])
		}
		return printResult(cmd.OutOrStdout(), summary)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List resumes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		resumes, err := a.client.ListResumes(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), resumes)
	},
}

var demandLimit int

var demandCmd = &cobra.Command{
	Use:   "demand",
	Short: "Rank skills by demand",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		demand, err := a.client.GetSkillDemand(cmd.Context())
		if err != nil {
			return err
		}
		if demandLimit > 0 && len(demand) > demandLimit {
			demand = demand[:demandLimit]
		}
		return printResult(cmd.OutOrStdout(), demand)
	},
}

var (
	matchSkills []string
	matchResume string
	matchLimit  int
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank jobs by skill overlap",
	Long: `Rank jobs by the number of required skills found in a skill set.

The skill set is either given with --skills or read from a stored resume
with --resume.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(matchSkills) == 0) == (matchResume == "") {
			return errors.New("exactly one of --skills or --resume is required")
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		if matchResume != "" {
			matches, err := a.client.MatchJobsForResume(cmd.Context(), matchResume, matchLimit)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), matches)
		}

		skills := make([]string, 0, len(matchSkills))
		for _, s := range matchSkills {
			if s = strings.TrimSpace(s); s != "" {
				skills = append(skills, s)
			}
		}
		matches, err := a.client.GetJobMatches(cmd.Context(), skills, matchLimit)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), matches)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show node and edge counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		stats, err := a.client.GetStats(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), stats)
	},
}

var initSchemaCmd = &cobra.Command{
	Use:   "init-schema",
	Short: "Create uniqueness constraints for node keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		if err := a.client.CreateIndices(cmd.Context()); err != nil {
			return err
		}
		a.logger.Info("schema initialized", "driver", a.cfg.Database.Driver)
		return nil
	},
}

func init() {
	demandCmd.Flags().IntVar(&demandLimit, "limit", 0, "show at most this many skills (0 for all)")

	matchCmd.Flags().StringSliceVar(&matchSkills, "skills", nil, "comma separated skills")
	matchCmd.Flags().StringVar(&matchResume, "resume", "", "use the skills of this resume")
	matchCmd.Flags().IntVar(&matchLimit, "limit", 10, "maximum matches (0 for all)")

	rootCmd.AddCommand(summaryCmd, listCmd, demandCmd, matchCmd, statsCmd, initSchemaCmd)
}
