package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/browserbase-fleet/internal/api"
	"github.com/shehryarbajwa/browserbase-fleet/internal/browser"
	"github.com/shehryarbajwa/browserbase-fleet/internal/config"
	"github.com/shehryarbajwa/browserbase-fleet/internal/history"
	"github.com/shehryarbajwa/browserbase-fleet/internal/orchestrator"
	"github.com/shehryarbajwa/browserbase-fleet/internal/profile"
	"github.com/shehryarbajwa/browserbase-fleet/internal/proxy"
	"github.com/shehryarbajwa/browserbase-fleet/internal/ratelimit"
	"github.com/shehryarbajwa/browserbase-fleet/internal/session"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

// loadSettings resolves settings with the given flags taking precedence
func loadSettings(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	loader := config.NewLoader()
	for flag, key := range bindings {
		if err := loader.BindFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return nil, err
		}
	}
	return loader.Load(settingsPath)
}

// fleetRuntime is everything a batch needs to run against docker
type fleetRuntime struct {
	cfg      *config.Config
	profiles *profile.Manager
	history  *history.Store
	fleet    *orchestrator.Orchestrator
	server   *http.Server
}

func newRuntime(ctx context.Context, cfg *config.Config) (*fleetRuntime, error) {
	cli, err := browser.NewDockerClient()
	if err != nil {
		return nil, err
	}

	profiles := profile.NewManager(cli, profile.Options{
		Images:       cfg.Images(),
		Host:         cfg.Browser.Host,
		ReadyTimeout: cfg.Browser.StartTimeout,
	})
	log.Printf("✓ Browser profiles initialized (%d kinds)", len(profiles.Kinds()))

	pullCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	log.Println("⏳ Ensuring browser images are available...")
	if err := profiles.EnsureImages(pullCtx); err != nil {
		profiles.Close()
		return nil, err
	}
	log.Println("✓ Browser images ready")

	registry := profiles.Registry(browser.DriverOptions{
		PollInterval: cfg.PollInterval,
		BaseURL:      cfg.Target.BaseURL,
		AuthURL:      cfg.Target.AuthURL,
	})
	runner := session.NewRunner(registry)
	runner.SetCloseTimeout(cfg.CloseTimeout)

	rt := &fleetRuntime{cfg: cfg, profiles: profiles}

	opts := []orchestrator.Option{
		orchestrator.WithLaunchLimiter(ratelimit.NewLimiter(cfg.Launch.PerMinute, cfg.Launch.Burst)),
	}
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			profiles.Close()
			return nil, err
		}
		rt.history = store
		opts = append(opts, orchestrator.WithRecorder(store))
		log.Printf("✓ History recorded to %s", cfg.History.Path)
	}

	rt.fleet = orchestrator.New(runner, opts...)

	if cfg.API.Listen != "" {
		rt.serve(cfg.API.Listen)
	}
	return rt, nil
}

func (rt *fleetRuntime) serve(addr string) {
	var runs api.RunHistory
	if rt.history != nil {
		runs = rt.history
	}
	handler := api.NewHandler(rt.fleet, runs)

	rt.server = &http.Server{
		Addr:        addr,
		Handler:     handler.SetupRoutes(proxy.NewServer(rt.fleet)),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("🔍 Status API on http://%s/v1/batch", addr)
		if err := rt.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("❌ Status API error: %v", err)
		}
	}()
}

func (rt *fleetRuntime) Close() {
	if rt.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := rt.server.Shutdown(ctx); err != nil {
			log.Printf("⚠️ Status API forced to shutdown: %v", err)
		}
		cancel()
	}
	if rt.history != nil {
		rt.history.Close()
	}
	rt.profiles.Close()
}

// runBatch submits batch and blocks until it drains. The first SIGINT/SIGTERM requests a
// stop; interrupted reports whether that happened.
func runBatch(fleet *orchestrator.Orchestrator, batch models.Batch, capacity int) (report models.BatchReport, interrupted bool, err error) {
	if err := fleet.Submit(context.Background(), batch, capacity); err != nil {
		return models.BatchReport{}, false, err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-quit:
			log.Println("⏹️ Interrupt received, stopping sessions...")
			interrupted = true
			fleet.RequestStop()
		case <-done:
		}
	}()

	_, err = fleet.AwaitCompletion(context.Background())
	close(done)
	<-exited
	if err != nil {
		return models.BatchReport{}, interrupted, err
	}
	return fleet.Report(), interrupted, nil
}

func printSummary(report models.BatchReport) {
	fmt.Println()
	fmt.Printf("Run %s (capacity %d)\n", report.RunID, report.Capacity)
	w := newTable()
	fmt.Fprintln(w, "SESSION\tSTATUS\tDURATION\tDETAIL")
	for _, o := range report.Outcomes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Name, o.Status, o.Duration().Round(time.Second), o.Error)
	}
	w.Flush()

	counts := report.Counts()
	fmt.Printf("\n%d completed, %d auth failed, %d driver errors, %d cancelled\n",
		counts[models.OutcomeCompleted], counts[models.OutcomeAuthFailed],
		counts[models.OutcomeDriverError], counts[models.OutcomeCancelled])
}

func checkBatch(batch models.Batch) error {
	if len(batch) == 0 {
		return fmt.Errorf("no sessions to run: pass --config or at least one --target")
	}
	return batch.Validate()
}
