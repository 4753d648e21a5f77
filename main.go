package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"canalpro-publisher/api"
	"canalpro-publisher/automation"
	"canalpro-publisher/browser"
	"canalpro-publisher/config"
	"canalpro-publisher/models"
	"canalpro-publisher/runner"
	"canalpro-publisher/scraper/gintervale"
	"canalpro-publisher/services"
	"canalpro-publisher/storage"
	"canalpro-publisher/utils"
)

const usage = `usage: canalpro-publisher <command> [args]

commands:
  serve                 run the HTTP API for the editing layer
  scrape <code>...      scrape source listings and store them
  fill <job.json>       fill the listing form for one job (run by the publisher)
  stats                 print the property dashboard
  export [-out path]    write stored properties to CSV
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := utils.NewLogger()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "scrape":
		err = scrape(ctx, cfg, logger, args)
	case "fill":
		err = fill(ctx, cfg, logger, args)
	case "stats":
		err = stats(ctx, cfg, logger)
	case "export":
		err = export(ctx, cfg, logger, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("%v", err)
		stop()
		os.Exit(1)
	}
}

func openStore(cfg *config.Config, logger *utils.Logger) (*storage.PostgresStore, error) {
	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		logger.Error("Make sure PostgreSQL is running: docker compose up -d")
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	return store, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := runner.New(cfg, logger)
	if err != nil {
		return err
	}

	srv := api.NewServer(
		store,
		services.NewPublisher(store, run, logger),
		services.NewCEPClient(cfg.CEPBaseURL, cfg.MaxRetries, logger),
		services.NewDashboardService(logger),
		logger,
	)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("=== CanalPro publisher API listening on %s ===", cfg.HTTPAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func scrape(ctx context.Context, cfg *config.Config, logger *utils.Logger, codes []string) error {
	if len(codes) == 0 {
		return errors.New("scrape: at least one property code is required (e.g. AP10657)")
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var mirror gintervale.PhotoMirror
	bucket, err := storage.NewPhotoBucket(cfg)
	if err != nil {
		return err
	}
	if bucket != nil {
		mirror = bucket
		logger.Info("Photos will be mirrored to bucket %s", cfg.S3Bucket)
	}

	logger.Info("=== Scraping %d properties (concurrency %d, rate %dms) ===",
		len(codes), cfg.MaxConcurrency, cfg.RateLimitMs)

	records, errs := gintervale.New(cfg, mirror, logger).ScrapeMany(ctx, codes)
	for _, p := range records {
		if err := store.UpsertProperty(ctx, p); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := store.EnsureDraft(ctx, p.Codigo); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Info("Stored %s: %s | R$ %.2f | %d photos", p.Codigo, p.Tipo, p.Preco, len(p.Fotos))
	}

	if len(errs) > 0 {
		return fmt.Errorf("scrape: %d of %d properties failed: %w", len(errs), len(codes), errors.Join(errs...))
	}
	return nil
}

// fill is the child side of the process boundary: it reads one job file,
// drives the browser and exits non-zero only on a fatal error.
func fill(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string) error {
	if len(args) != 1 {
		return errors.New("fill: expected exactly one job file argument")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("%s at %s: read job: %w", automation.LogFatal, automation.StageLoggedOut, err)
	}
	job, err := models.DecodeJob(data)
	if err != nil {
		return fmt.Errorf("%s at %s: %w", automation.LogFatal, automation.StageLoggedOut, err)
	}
	if err := automation.Preflight(cfg, job); err != nil {
		return fmt.Errorf("%s at %s: %w", automation.LogFatal, automation.StageLoggedOut, err)
	}

	plan, err := config.LoadSelectorPlan(cfg.SelectorsFile)
	if err != nil {
		return fmt.Errorf("%s at %s: %w", automation.LogFatal, automation.StageLoggedOut, err)
	}

	session, err := browser.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("%s at %s: %w", automation.LogFatal, automation.StageLoggingIn, err)
	}
	defer session.Close()

	// Cancel the tab when the parent asks us to stop.
	runCtx, cancel := context.WithCancel(session.Context())
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	res := automation.NewOrchestrator(session.Page(), cfg, plan, logger).Run(runCtx, job)
	if res.Screenshot != "" {
		logger.Info("Screenshot saved to %s", res.Screenshot)
	}
	return res.Err
}

func stats(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch properties: %w", err)
	}
	drafts, err := store.FetchDrafts(ctx)
	if err != nil {
		return fmt.Errorf("fetch drafts: %w", err)
	}

	dashboard := services.NewDashboardService(logger)
	dashboard.Print(os.Stdout, dashboard.Generate(records, drafts))
	return nil
}

func export(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("out", cfg.CSVOutputPath, "CSV output path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch properties: %w", err)
	}
	drafts, err := store.FetchDrafts(ctx)
	if err != nil {
		return fmt.Errorf("fetch drafts: %w", err)
	}

	var exporter storage.PropertyExporter
	exporter, err = storage.NewCSVWriter(*out)
	if err != nil {
		return err
	}
	if err := exporter.WriteProperties(records, drafts); err != nil {
		exporter.Close()
		return fmt.Errorf("CSV write failed: %w", err)
	}
	if err := exporter.Close(); err != nil {
		return err
	}

	logger.Info("Exported %d properties to %s", len(records), *out)
	return nil
}
