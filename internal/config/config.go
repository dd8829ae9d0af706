package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/robmartinson/tablecopy/internal/migrate"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "tablecopy",
		Short: "Copy tables from PostgreSQL to MySQL in dependency order",
		Long: `A table copy tool that exports every table of a plan from the source
database, checkpoints it as CSV in a backup directory and appends the rows to
the matching destination table, parents before children.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Extract, stage and load every table of the plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, migrate.ModeRun, "")
		},
	}

	extractCmd = &cobra.Command{
		Use:   "extract",
		Short: "Export every table of the plan to the backup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, migrate.ModeExtractOnly, "")
		},
	}

	loadCmd = &cobra.Command{
		Use:   "load",
		Short: "Load previously exported CSV files into the destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, migrate.ModeLoadOnly, "")
		},
	}

	mileageCmd = &cobra.Command{
		Use:   "mileage",
		Short: "Snapshot vehicle mileage into the Mileage history table",
		Long: `Read id and mileage of every Vehicle from the destination database,
write them to vehicle_data.csv and insert one Mileage row per vehicle stamped
with the run time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, migrate.ModeRun, "mileage")
		},
	}

	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Print the table order plan",
		Long: `Print the tables of the plan in load order. With --check the order is
audited against the foreign keys declared at the destination.`,
		RunE: runPlan,
	}

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Validate database connections and configuration",
		Long: `Test both database connections and the plan without copying any
rows.`,
		RunE: runValidate,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tablecopy %s\n", Version)
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tablecopy.yaml)")
	rootCmd.PersistentFlags().String("plan", "", "plan file or built-in plan name (full, mileage)")
	rootCmd.PersistentFlags().String("backup-dir", "", "directory for staged CSV files (default ./backups/)")
	rootCmd.PersistentFlags().Int("batch-size", 0, "rows per multi-row INSERT (default 500)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console, json)")

	runCmd.Flags().Bool("no-stage", false, "keep batches in memory instead of staging CSV files")
	planCmd.Flags().Bool("check", false, "audit the order against destination foreign keys")

	// Add commands
	rootCmd.AddCommand(runCmd, extractCmd, loadCmd, mileageCmd, planCmd, validateCmd, versionCmd)

	// Bind flags to the keys the environment also provides
	viper.BindPFlag(keyPlanFile, rootCmd.PersistentFlags().Lookup("plan"))
	viper.BindPFlag(keyBackupDir, rootCmd.PersistentFlags().Lookup("backup-dir"))
	viper.BindPFlag(keyBatchSize, rootCmd.PersistentFlags().Lookup("batch-size"))
	viper.BindPFlag(keyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag(keyLogFormat, rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag(keyNoStage, runCmd.Flags().Lookup("no-stage"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".tablecopy")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
