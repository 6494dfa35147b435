package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/smartcity/transitweather/internal/config"
	"github.com/smartcity/transitweather/internal/domain"
	"github.com/smartcity/transitweather/internal/export"
	"github.com/smartcity/transitweather/internal/logging"
	"github.com/smartcity/transitweather/internal/repository/postgres"
	"github.com/smartcity/transitweather/internal/service"
	"github.com/smartcity/transitweather/internal/storage"
)

type runFlags struct {
	startDate  string
	endDate    string
	maxRecords int
	noDB       bool
}

func newRootCmd() *cobra.Command {
	flags := &runFlags{}

	root := &cobra.Command{
		Use:   "transit-pipeline",
		Short: "NYC transit ridership and weather ETL",
		Long: `transit-pipeline extracts hourly subway ridership and daily weather,
merges them into an analytics table and exports it to CSV, the object
store and PostgreSQL.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.startDate, "start-date", "2023-01-01", "first day to extract (YYYY-MM-DD)")
	pf.StringVar(&flags.endDate, "end-date", time.Now().Format(domain.DateLayout), "last day to extract (YYYY-MM-DD)")
	pf.IntVar(&flags.maxRecords, "max-records", 600000, "maximum ridership rows to extract")
	pf.BoolVar(&flags.noDB, "no-db", false, "skip loading into PostgreSQL")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the full extract, transform and load pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, flags)
		},
	})

	return root
}

// apply overrides the configured extraction window with command line values
func (f *runFlags) apply(cfg *config.Config) error {
	start, err := time.Parse(domain.DateLayout, f.startDate)
	if err != nil {
		return fmt.Errorf("invalid --start-date %q: %w", f.startDate, err)
	}
	end, err := time.Parse(domain.DateLayout, f.endDate)
	if err != nil {
		return fmt.Errorf("invalid --end-date %q: %w", f.endDate, err)
	}
	cfg.StartDate = start
	cfg.EndDate = end
	cfg.MaxRecords = f.maxRecords
	return config.Validate(cfg)
}

func runPipeline(cmd *cobra.Command, flags *runFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := flags.apply(cfg); err != nil {
		return err
	}

	log := logging.New(cfg, "transit-pipeline")
	metrics := service.NewMetrics()

	saveToDB := !flags.noDB
	var repo service.AnalyticsRepository = postgres.NewMemoryRepository()
	if saveToDB && cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, skipping database load")
		saveToDB = false
	}
	if saveToDB {
		// the pool connects lazily; an unreachable database fails the load step and leaves a backup CSV
		pool, err := pgxpool.New(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		defer pool.Close()
		repo = postgres.NewPostgresRepository(pool, cfg.AnalyticsTable)
	}

	var store service.ObjectStore
	if cfg.ObjectStoreDir != "" {
		local, err := storage.NewLocalStore(cfg.ObjectStoreDir, log)
		if err != nil {
			return err
		}
		store = local
	}

	retrier := service.NewRetrier(cfg.RetryMax, cfg.RetryDelay, log, metrics)
	extractor := service.NewExtractionService(
		service.NewRidershipService(service.RidershipConfig{
			BaseURL:         cfg.RidershipURL,
			AppToken:        cfg.SocrataAppToken,
			Timeout:         cfg.RequestTimeout,
			PolitenessDelay: cfg.PolitenessDelay,
		}, retrier, log, metrics),
		service.NewWeatherService(service.WeatherConfig{
			BaseURL:  cfg.WeatherURL,
			Timezone: cfg.WeatherTimezone,
			Timeout:  cfg.RequestTimeout,
		}, retrier, log, metrics),
		log,
		metrics,
	)
	transformer := service.NewTransformService(service.NewQualityValidator(log), service.NewFeatureDeriver(log), log)
	writer := export.NewWriter(cfg.OutputDir, log)
	loader := service.NewLoadService(writer, store, repo, cfg.ObjectPrefix, cfg.AnalyticsTable, log)
	pipeline := service.NewPipelineService(extractor, transformer, loader, writer, repo, log, metrics)

	run, runErr := pipeline.Run(cmd.Context(), service.RunOptions{
		ExtractOptions: service.ExtractOptions{
			Start:      cfg.StartDate,
			End:        cfg.EndDate,
			MaxRecords: cfg.MaxRecords,
			Latitude:   cfg.Latitude,
			Longitude:  cfg.Longitude,
		},
		SaveToDB: saveToDB,
	})
	printSummary(cmd.OutOrStdout(), run)
	if runErr != nil {
		return fmt.Errorf("pipeline failed: %w", runErr)
	}
	return nil
}

func printSummary(w io.Writer, run domain.PipelineRun) {
	fmt.Fprintf(w, "\nPipeline %s (run %s)\n", run.Status, run.ID)
	fmt.Fprintf(w, "  Date range:         %s to %s\n", run.StartDate, run.EndDate)
	fmt.Fprintf(w, "  Ridership records:  %d\n", run.RidershipRows)
	fmt.Fprintf(w, "  Weather records:    %d\n", run.WeatherRows)
	fmt.Fprintf(w, "  Merged records:     %d\n", run.Transformation.Records)
	fmt.Fprintf(w, "  Data quality score: %.2f%%\n", run.NullScore)
	fmt.Fprintf(w, "  Success rate:       %.2f%%\n", run.SuccessRate)
	fmt.Fprintf(w, "  Duration:           %s\n", run.EndTime.Sub(run.StartTime).Round(time.Millisecond))

	if run.Load != nil {
		fmt.Fprintf(w, "  Dataset CSV:        %s\n", run.Load.CSVPath)
		fmt.Fprintf(w, "  Summary CSV:        %s\n", run.Load.SummaryPath)
		for _, key := range run.Load.UploadedObjects {
			fmt.Fprintf(w, "  Uploaded:           %s\n", key)
		}
		fmt.Fprintf(w, "  Database load:      %t\n", run.Load.DatabaseSuccess)
		if run.Load.BackupPath != "" {
			fmt.Fprintf(w, "  Backup CSV:         %s\n", run.Load.BackupPath)
		}
		for _, e := range run.Load.Errors {
			fmt.Fprintf(w, "  Warning:            %s\n", e)
		}
	}
	if run.Error != "" {
		fmt.Fprintf(w, "  Error:              %s\n", run.Error)
	}
}
