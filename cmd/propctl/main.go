// Package main provides propctl, the operator CLI for training, model
// versions and one-off generation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/user"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/propcast/internal/app"
	"github.com/yourusername/propcast/internal/config"
	"github.com/yourusername/propcast/internal/database"
	"github.com/yourusername/propcast/internal/logger"
)

const dateLayout = "2006-01-02"

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	verbose    bool
	cfg        *config.Config
	appLog     *logrus.Logger
	a          *app.App
)

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultPath, "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	trainCmd.Flags().String("from", "", "First game date (YYYY-MM-DD)")
	trainCmd.Flags().String("to", "", "Last game date (YYYY-MM-DD)")
	trainCmd.Flags().Bool("publish", true, "Publish the trained version as latest")
	trainCmd.MarkFlagRequired("from")
	trainCmd.MarkFlagRequired("to")

	promoteCmd.Flags().String("by", "", "Operator recorded in the audit log")

	generateCmd.Flags().Int64("player", 0, "Player id")
	generateCmd.Flags().String("date", "", "Game date (YYYY-MM-DD), defaults to today")
	generateCmd.Flags().Bool("force", false, "Regenerate even when a prediction exists")
	generateCmd.MarkFlagRequired("player")

	rootCmd.AddCommand(migrateCmd, trainCmd, versionsCmd, showCmd, promoteCmd, generateCmd, driftCmd)
}

var rootCmd = &cobra.Command{
	Use:           "propctl",
	Short:         "Operate the propcast prediction service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupDependencies(cmd.Context()); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if a != nil {
			a.Close()
		}
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if a != nil {
			a.Close()
		}
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		if err := config.LoadSecretsFromAWS(context.Background(), cfg, os.Getenv("AWS_REGION"), os.Getenv("AWS_SECRET_NAME")); err != nil {
			return err
		}
	}
	return config.Validate(cfg)
}

func setupDependencies(ctx context.Context) error {
	level := "warn"
	if verbose {
		level = "debug"
	}
	appLog = logger.NewLoggerForEnvironment(level, cfg.App.Environment)

	var err error
	a, err = app.New(ctx, cfg, appLog)
	return err
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		y, m, d := time.Now().UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD", value)
	}
	return t, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if a.DB == nil {
			return fmt.Errorf("no database configured: set storage.backend or model.registry_backend to postgres")
		}
		if err := database.Migrate(cmd.Context(), a.DB); err != nil {
			return err
		}
		fmt.Println("Schema applied")
		return nil
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a calibrated model on settled prop lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		fromFlag, _ := cmd.Flags().GetString("from")
		toFlag, _ := cmd.Flags().GetString("to")
		publish, _ := cmd.Flags().GetBool("publish")

		from, err := parseDate(fromFlag)
		if err != nil {
			return err
		}
		to, err := parseDate(toFlag)
		if err != nil {
			return err
		}
		if to.Before(from) {
			return fmt.Errorf("--to must not be before --from")
		}

		train := a.Training.Train
		if publish {
			train = a.Training.TrainAndPublish
		}
		artifact, err := train(cmd.Context(), from, to)
		if err != nil {
			return err
		}

		m := artifact.Metrics
		fmt.Printf("Version:          %s\n", artifact.VersionID)
		fmt.Printf("Samples:          %d (positive rate %.3f)\n", m.Samples, m.PositiveRate)
		fmt.Printf("ROC-AUC:          %.4f\n", m.ROCAUC)
		fmt.Printf("Brier:            %.4f\n", m.Brier)
		fmt.Printf("Calibrated Brier: %.4f\n", m.CalibratedBrier)
		fmt.Printf("ECE:              %.4f\n", m.ECE)
		fmt.Printf("Published:        %v\n", publish)
		return nil
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List model versions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		versions, err := a.Registry.Versions(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tCREATED\tCOLUMNS\tLATEST")
		for _, v := range versions {
			latest := ""
			if v.IsLatest {
				latest = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", v.VersionID, v.CreatedAt.Format(time.RFC3339), len(v.FeatureColumns), latest)
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <version>",
	Short: "Print a model version's columns, calibration and metrics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		artifact, err := a.Registry.Artifact(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := map[string]interface{}{
			"version_id":      artifact.VersionID,
			"feature_columns": artifact.FeatureColumns,
			"calibration":     artifact.Calibration,
			"metrics":         artifact.Metrics,
			"created_at":      artifact.CreatedAt,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <version>",
	Short: "Point latest at an existing version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		if by == "" {
			if u, err := user.Current(); err == nil {
				by = u.Username
			}
		}
		if err := a.Registry.Promote(cmd.Context(), args[0], by); err != nil {
			return err
		}
		fmt.Printf("Promoted %s; running servers pick it up on their next reload\n", args[0])
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Produce the prediction for a player's prop",
	RunE: func(cmd *cobra.Command, args []string) error {
		playerID, _ := cmd.Flags().GetInt64("player")
		dateFlag, _ := cmd.Flags().GetString("date")
		force, _ := cmd.Flags().GetBool("force")

		date, err := parseDate(dateFlag)
		if err != nil {
			return err
		}
		if err := a.LoadModel(cmd.Context()); err != nil {
			return err
		}

		ctx := cmd.Context()
		get := a.Orchestrator.GetOrGenerate
		if force {
			get = a.Orchestrator.Regenerate
		}
		res, err := get(ctx, playerID, date)
		if err != nil {
			return err
		}

		p := res.Prediction
		fmt.Printf("Player %d on %s, line %s\n", playerID, date.Format(dateLayout), res.Prop.Line.String())
		fmt.Printf("P(over):   %.4f\n", p.ProbOver)
		fmt.Printf("CI:        ±%.2f\n", p.ConfidenceInterval)
		fmt.Printf("Model:     %s\n", p.ModelVersionID)
		fmt.Printf("Source:    %s\n", res.Source)
		return nil
	},
}

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Run the calibration drift check once",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := a.LoadModel(cmd.Context()); err != nil {
			return err
		}
		report, rec, err := a.Drift.Check(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if rec != nil {
			fmt.Printf("Retrain recommended: %s\n", rec.Reason)
		}
		return nil
	},
}
