package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	cli "github.com/jawher/mow.cli"
	"gorm.io/gorm"

	"priceradar/business/match"
	"priceradar/business/normalize"
	syncService "priceradar/business/sync"
	"priceradar/domain"
	"priceradar/internal/mirror"
	"priceradar/internal/repository/postgres"
	redisRepo "priceradar/internal/repository/redis"
	"priceradar/internal/source"
	"priceradar/internal/source/greengadgets"
	"priceradar/internal/source/reebelo"
	"priceradar/pkg/config"
	"priceradar/pkg/database"
	redisDB "priceradar/pkg/database/redis"
	"priceradar/pkg/logger"
	"priceradar/pkg/metrics"
)

// Exit codes: 0 full success, 2 partial run (some competitors failed),
// 1 anything worse. Cron alerting keys off these.
const (
	exitOK      = 0
	exitError   = 1
	exitPartial = 2
)

func main() {
	app := cli.App("pricesync", "Competitor price synchronization for the catalog dashboard")

	app.Command("run", "run one price sync across the configured competitors", cmdRun)
	app.Command("mirror", "import the merchant catalog into the local mirror", cmdMirror)
	app.Command("stats", "print recent execution stats", cmdStats)

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *gorm.DB) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	metrics.Init()

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	return cfg, db
}

func cmdRun(cmd *cli.Cmd) {
	cmd.Spec = "[--competitor...] [--timeout]"
	competitors := cmd.StringsOpt("c competitor", nil, "restrict the run to these competitors")
	timeout := cmd.StringOpt("timeout", "30m", "overall run deadline")

	cmd.Action = func() {
		cfg, db := setup()

		deadline, err := time.ParseDuration(*timeout)
		if err != nil {
			logger.Error("invalid timeout", "value", *timeout, "error", err)
			cli.Exit(exitError)
		}

		vocab := normalize.DefaultVocabulary().Extend(cfg.Sync.ExtraConditions, cfg.Sync.ExtraColors)
		reebeloClient, err := reebelo.NewClient(cfg.Reebelo)
		if err != nil {
			logger.Error("failed to init reebelo adapter", "error", err)
			cli.Exit(exitError)
		}
		greenGadgetsClient, err := greengadgets.NewClient(cfg.GreenGadgets, vocab)
		if err != nil {
			logger.Error("failed to init green-gadgets adapter", "error", err)
			cli.Exit(exitError)
		}

		executionRepo := postgres.NewExecutionRepository(db)
		catalogRepo := postgres.NewCatalogRepository(db)
		priceRepo := postgres.NewPriceRepository(db, cfg.Sync.BatchSize)
		matcher := match.NewMatcher(catalogRepo, catalogRepo)
		svc := syncService.NewService(
			[]source.Adapter{reebeloClient, greenGadgetsClient},
			catalogRepo, matcher, executionRepo, priceRepo,
		)

		ctx, cancel := context.WithTimeout(context.Background(), deadline)
		defer cancel()

		summary, err := svc.RunCompetitors(ctx, "cli", *competitors)
		if err != nil {
			logger.Error("sync run failed", "error", err)
			cli.Exit(exitError)
		}

		fmt.Printf("execution %s: %s (%d offers, %d matched, %d records, %s)\n",
			summary.ExecutionID, summary.Status, summary.Offers, summary.Matched, summary.Records, summary.Duration.Round(time.Millisecond))

		if summary.Failed() {
			// distinguish "some competitors failed" from "nothing worked"
			completed := 0
			for _, run := range summary.Runs {
				if run.Status == domain.StatusCompleted {
					completed++
				}
			}
			if completed > 0 {
				cli.Exit(exitPartial)
			}
			cli.Exit(exitError)
		}
	}
}

func cmdMirror(cmd *cli.Cmd) {
	cmd.Action = func() {
		cfg, db := setup()

		// the serving side caches catalog lookups; an import has to drop
		// those entries or the next run matches against the old mirror
		var cache mirror.CacheDropper
		if cfg.Redis.Enabled {
			redisClient, err := redisDB.NewRedisClient(cfg)
			if err != nil {
				logger.Error("failed to connect to redis", "error", err)
				cli.Exit(exitError)
			}
			defer redisDB.CloseRedisClient(redisClient)

			catalogRepo := postgres.NewCatalogRepository(db)
			cache = redisRepo.NewCatalogCache(redisClient, catalogRepo, catalogRepo, cfg.Redis.CacheTTL)
		}

		importer, err := mirror.NewImporter(
			cfg.Mirror,
			postgres.NewMirrorRepository(db),
			normalize.DefaultVocabulary().Extend(cfg.Sync.ExtraConditions, cfg.Sync.ExtraColors),
			cache,
		)
		if err != nil {
			logger.Error("failed to init catalog importer", "error", err)
			cli.Exit(exitError)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()

		summary, err := importer.Run(ctx)
		if err != nil {
			logger.Error("catalog mirror import failed", "error", err)
			cli.Exit(exitError)
		}

		fmt.Printf("mirrored %d products, %d variants (%d pages)\n", summary.Products, summary.Variants, summary.Pages)
	}
}

func cmdStats(cmd *cli.Cmd) {
	cmd.Spec = "[--hours]"
	hours := cmd.IntOpt("hours", 24, "look-back window")

	cmd.Action = func() {
		_, db := setup()

		executionRepo := postgres.NewExecutionRepository(db)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		execs, err := executionRepo.ExecutionsSince(ctx, time.Now().Add(-time.Duration(*hours)*time.Hour))
		if err != nil {
			logger.Error("failed to load executions", "error", err)
			cli.Exit(exitError)
		}

		if len(execs) == 0 {
			fmt.Printf("no executions in the last %dh\n", *hours)
			return
		}

		for _, exec := range execs {
			duration := "-"
			if exec.EndTime != nil {
				duration = exec.EndTime.Sub(exec.StartTime).Round(time.Second).String()
			}
			fmt.Printf("%s  %-9s  %-8s  %s\n", exec.StartTime.Format(time.RFC3339), exec.Status, exec.TriggerSource, duration)
			for _, run := range exec.Runs {
				fmt.Printf("    %-13s  %-9s  offers=%d errors=%d\n", run.Competitor, run.Status, run.OfferCount, run.ErrorCount)
			}
			if exec.Notes != "" {
				fmt.Printf("    note: %s\n", exec.Notes)
			}
		}
	}
}
