package careergraph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile      string
	outputFormat string
	rootCmd      = &cobra.Command{
		Use:   "careergraph",
		Short: "CareerGraph: resume and job knowledge graph",
		Long: `CareerGraph builds a knowledge graph from structured resumes and job
postings and answers questions over it: resume summaries, skill demand
and skill-overlap job matching.

Records are JSON or YAML documents as produced by an extraction service.
Storage is Neo4j or an embedded Badger database.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.careergraph.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format (json, yaml)")

	// Database flags
	rootCmd.PersistentFlags().String("db-driver", "badger", "Database driver (badger, neo4j)")
	rootCmd.PersistentFlags().String("db-uri", "./careergraph_db", "Database URI, or data directory for badger")
	rootCmd.PersistentFlags().String("db-username", "", "Database username (neo4j only)")
	rootCmd.PersistentFlags().String("db-password", "", "Database password (neo4j only)")
	rootCmd.PersistentFlags().String("db-database", "", "Database name (neo4j only)")

	// Bind flags to viper
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".careergraph")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// printResult writes v to w in the selected output format.
func printResult(w io.Writer, v any) error {
	switch outputFormat {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", outputFormat)
	}
}
