package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/andresuchdata/stockrecon/internal/config"
	"github.com/andresuchdata/stockrecon/internal/inventorysync"
	"github.com/andresuchdata/stockrecon/internal/reconcile"
	"github.com/andresuchdata/stockrecon/internal/repository/postgres"
	"github.com/andresuchdata/stockrecon/internal/resolver"
	"github.com/andresuchdata/stockrecon/internal/service"
	"github.com/andresuchdata/stockrecon/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

type dbKey struct{}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func newSKUFlag() *cli.StringSliceFlag {
	return &cli.StringSliceFlag{
		Name:     "sku",
		Usage:    "SKU to process (repeatable; commas are part of the SKU)",
		Required: true,
	}
}

func initDB(c *cli.Context) error {
	logger.SetLevel(c.String("log-level"))

	db, err := postgres.Open("pgx", c.String("db-url"))
	if err != nil {
		return err
	}

	// Store the database connection in the context
	c.Context = context.WithValue(c.Context, dbKey{}, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey{}).(*postgres.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func dbFrom(c *cli.Context) *postgres.DB {
	return c.Context.Value(dbKey{}).(*postgres.DB)
}

func skusFrom(c *cli.Context) []string {
	var skus []string
	for _, v := range c.StringSlice("sku") {
		if v = strings.TrimSpace(v); v != "" {
			skus = append(skus, v)
		}
	}
	return skus
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logger.Log.Debug().Err(err).Msg("no .env file loaded")
	}

	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("stockctl failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "stockctl",
		Usage: "Operate the stock reconciliation core",
		Flags: []cli.Flag{
			newDBURLFlag(),
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}},
		},
		Before: initDB,
		After:  closeDB,
		Commands: []*cli.Command{
			{
				Name:  "plan",
				Usage: "Compute reorder suggestions and export them as xlsx",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Value: "reorder-plan.xlsx", Usage: "Output workbook path"},
					&cli.BoolFlag{Name: "due", Usage: "Only products that need an order"},
				},
				Action: runPlan,
			},
			{
				Name:   "resolve",
				Usage:  "Show how SKUs bind to stored stock rows",
				Flags:  []cli.Flag{newSKUFlag()},
				Action: runResolve,
			},
			{
				Name:   "resync",
				Usage:  "Push the current local stock of SKUs to the commerce platform",
				Flags:  []cli.Flag{newSKUFlag()},
				Action: runResync,
			},
		},
		// SKUs may contain commas
		DisableSliceFlagSeparator: true,
	}
}

func runPlan(c *cli.Context) error {
	planning := service.NewPlanningService(postgres.NewStockRepository(dbFrom(c)))

	f, err := os.Create(c.String("out"))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", c.String("out"), err)
	}
	defer f.Close()

	if err := planning.ExportSuggestions(c.Context, f, c.Bool("due")); err != nil {
		return err
	}

	logger.Log.Info().Str("path", c.String("out")).Msg("reorder plan written")
	return nil
}

func runResolve(c *cli.Context) error {
	res := resolver.New(postgres.NewStockRepository(dbFrom(c)))

	resolution, err := res.Resolve(c.Context, skusFrom(c))
	if err != nil {
		return err
	}

	for _, sku := range skusFrom(c) {
		r, err := resolution.Lookup(sku)
		if err != nil {
			fmt.Fprintf(c.App.Writer, "%-24s  UNRESOLVED  %v\n", sku, err)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%-24s  %-24s  %6d  %s\n", sku, r.MatchedSKU, r.StockOnHand, r.Tier)
	}
	return nil
}

func runResync(c *cli.Context) error {
	cfg := config.Read(viper.New())
	stock := postgres.NewStockRepository(dbFrom(c))

	orchestrator := reconcile.NewOrchestrator(
		resolver.New(stock, resolver.WithMaxParallel(cfg.Reconcile.ResolverMaxParallel)),
		stock,
		inventorysync.NewClient(cfg.Sync),
		reconcile.Options{TenantID: cfg.Sync.TenantID, SyncTimeout: cfg.Sync.Timeout()},
	)

	report, err := orchestrator.Resync(c.Context, "stockctl", skusFrom(c))
	if report != nil {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	}
	return err
}
