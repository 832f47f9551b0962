package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"pesv-compliance/backend/internal/config"
	"pesv-compliance/backend/internal/logging"
	"pesv-compliance/backend/internal/repository"
	"pesv-compliance/backend/pkg/models"
)

// registrySteps is the statutory PESV step list loaded by `pesv-seed seed`.
// Numbers define display and execution order; seeding skips numbers that
// already exist so the command can run against a live database.
var registrySteps = []models.Step{
	{Number: 1, Name: "Road safety leader designation", Citation: "Res. 40595/2022 paso 1"},
	{Number: 2, Name: "Strategic road safety committee", Citation: "Res. 40595/2022 paso 2"},
	{Number: 3, Name: "Road safety policy", Citation: "Res. 40595/2022 paso 3"},
	{Number: 4, Name: "Roles and responsibilities matrix", Citation: "Res. 40595/2022 paso 4"},
	{Number: 5, Name: "Diagnosis and context characterization", Citation: "Res. 40595/2022 paso 5"},
	{Number: 6, Name: "Road risk assessment", Citation: "Res. 40595/2022 paso 6"},
	{Number: 7, Name: "Objectives and indicators", Citation: "Res. 40595/2022 paso 7"},
	{Number: 8, Name: "Annual work plan", Citation: "Res. 40595/2022 paso 8"},
	{Number: 9, Name: "Driver hiring and competency profile", Citation: "Res. 40595/2022 paso 9"},
	{Number: 10, Name: "Driver training program", Citation: "Res. 40595/2022 paso 10"},
	{Number: 11, Name: "Medical and psychosensometric exams", Citation: "Res. 40595/2022 paso 11"},
	{Number: 12, Name: "Safe speed management", Citation: "Res. 40595/2022 paso 12"},
	{Number: 13, Name: "Journey and route planning", Citation: "Res. 40595/2022 paso 13"},
	{Number: 14, Name: "Vehicle preventive maintenance plan", Citation: "Res. 40595/2022 paso 14"},
	{Number: 15, Name: "Pre-trip vehicle inspection protocol", Citation: "Res. 40595/2022 paso 15"},
	{Number: 16, Name: "Safe infrastructure inside facilities", Citation: "Res. 40595/2022 paso 16"},
	{Number: 17, Name: "In-house incident investigation procedure", Citation: "Res. 40595/2022 paso 17"},
	{Number: 18, Name: "Emergency and crash attention protocol", Citation: "Res. 40595/2022 paso 18"},
	{Number: 19, Name: "Indicator measurement and analysis", Citation: "Res. 40595/2022 paso 19"},
	{Number: 20, Name: "Internal audit of the road safety plan", Citation: "Res. 40595/2022 paso 20"},
	{Number: 21, Name: "Management review and improvement", Citation: "Res. 40595/2022 paso 21"},
	{Number: 22, Name: "Documented information control", Citation: "Res. 40595/2022 paso 22"},
	{Number: 23, Name: "Communication and engagement mechanisms", Citation: "Res. 40595/2022 paso 23"},
	{Number: 24, Name: "Regulatory update tracking", Citation: "Res. 40595/2022 paso 24"},
	{Number: 25, Name: "Fatigue management plan", Citation: "Res. 40595/2022 paso 25"},
}

func main() {
	var configFile string

	root := &cobra.Command{
		Use:   "pesv-seed",
		Short: "Database utilities for the PESV compliance service",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), configFile, func(ctx context.Context, store *repository.PostgresStore, logger *logging.Logger) error {
				if err := store.Migrate(ctx); err != nil {
					return fmt.Errorf("applying schema: %w", err)
				}
				logger.Info("Schema applied")
				return nil
			})
		},
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the statutory step registry, skipping existing steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), configFile, func(ctx context.Context, store *repository.PostgresStore, logger *logging.Logger) error {
				if err := store.Migrate(ctx); err != nil {
					return fmt.Errorf("applying schema: %w", err)
				}
				return seedRegistry(ctx, store, logger)
			})
		},
	}

	root.AddCommand(migrateCmd, seedCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func withStore(ctx context.Context, configFile string, fn func(context.Context, *repository.PostgresStore, *logging.Logger) error) error {
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	return fn(ctx, repository.NewPostgresStore(pool), logger)
}

func seedRegistry(ctx context.Context, store *repository.PostgresStore, logger *logging.Logger) error {
	existing, err := store.ListSteps(ctx)
	if err != nil {
		return fmt.Errorf("listing existing steps: %w", err)
	}
	present := make(map[int]bool, len(existing))
	for _, s := range existing {
		present[s.Number] = true
	}

	created := 0
	for _, step := range registrySteps {
		if present[step.Number] {
			logger.Debug("Step already present", "number", step.Number)
			continue
		}
		s := step
		if err := store.CreateStep(ctx, &s); err != nil {
			return fmt.Errorf("creating step %d: %w", step.Number, err)
		}
		logger.Info("Seeded step", "number", s.Number, "name", s.Name)
		created++
	}

	logger.Info("Seed complete", "created", created, "skipped", len(registrySteps)-created)
	return nil
}
