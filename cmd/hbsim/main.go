package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/hashbounds/internal/config"
	"github.com/l1jgo/hashbounds/internal/core/event"
	coresys "github.com/l1jgo/hashbounds/internal/core/system"
	"github.com/l1jgo/hashbounds/internal/data"
	"github.com/l1jgo/hashbounds/internal/hashbounds"
	"github.com/l1jgo/hashbounds/internal/persist"
	"github.com/l1jgo/hashbounds/internal/scripting"
	"github.com/l1jgo/hashbounds/internal/system"
	"github.com/l1jgo/hashbounds/internal/viewer"
	"github.com/l1jgo/hashbounds/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(scenario string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              hbsim  v0.1.0                \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m    multi-resolution spatial index sim     \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mscenario:\033[0m %s\n\n", scenario)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value any) {
	s := fmt.Sprint(value)
	dotsLen := max(42-len(label)-len(s), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), s)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main simulation logic ─────────────────────────────────────────

var defaultBounds = hashbounds.MinMax(-2048, -2048, 2048, 2048)

func run() error {
	// 1. Load config
	cfgPath := "config/hbsim.toml"
	if p := os.Getenv("HBSIM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Scenario
	sc, err := loadScenario(cfg)
	if err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	printBanner(sc.Name)

	printSection("index")
	bus := event.NewBus()
	ws, err := world.NewState(cfg.Index.MinSize, cfg.Index.LevelCount, sc.Bounds, bus, log)
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}
	printStat("min bucket size", cfg.Index.MinSize)
	printStat("levels", cfg.Index.LevelCount)
	printStat("coarsest bucket size", ws.Index.BucketSize(cfg.Index.LevelCount-1))

	// 4. Lua hooks
	var engine *scripting.Engine
	if cfg.Scenario.ScriptsDir != "" {
		engine, err = scripting.NewEngine(cfg.Scenario.ScriptsDir, log.Named("lua"))
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer engine.Close()
		engine.SetBounds(sc.Bounds.MinX, sc.Bounds.MinY, sc.Bounds.MaxX, sc.Bounds.MaxY)
		printOK(fmt.Sprintf("lua hooks loaded (steer: %t, on_contact: %t)", engine.HasSteer(), engine.HasOnContact()))
	}

	// 5. Run store
	var store persist.Store
	var runID int64
	if cfg.Store.Driver != "" {
		printSection("store")
		openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		store, err = persist.Open(openCtx, cfg.Store, log)
		cancel()
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		defer store.Close()
		runID, err = store.CreateRun(ctx, persist.Run{
			Scenario:   sc.Name,
			Seed:       cfg.Sim.Seed,
			MinSize:    cfg.Index.MinSize,
			LevelCount: cfg.Index.LevelCount,
			Bodies:     len(sc.Bodies),
		})
		if err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		printOK(fmt.Sprintf("%s store ready, run %d", cfg.Store.Driver, runID))
	}

	// 6. Viewer
	var hub *viewer.Hub
	if cfg.Viewer.Enabled {
		printSection("viewer")
		hub = viewer.NewHub(log.Named("viewer"))
		go hub.Run(ctx)
		srv, err := viewer.Listen(cfg.Viewer, hub, log.Named("viewer"))
		if err != nil {
			return fmt.Errorf("viewer: %w", err)
		}
		go srv.Serve()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		printOK(fmt.Sprintf("viewer on ws://%s/ws", srv.Addr()))
	}

	// 7. Systems
	stats := &system.TickStats{}
	runner := coresys.NewRunner()
	contacts := system.NewContactSystem(ws, bus, engine, stats, log.Named("contact"))
	statsSys := system.NewStatsSystem(ws, store, runID, runner, cfg.Store.FlushInterval, stats, log.Named("stats"))
	cleanup := system.NewCleanupSystem(ws, cfg.Index.PruneInterval, stats, log.Named("cleanup"))
	cleanup.OnPrune(statsSys.RecordPruned)
	crossCheck := system.NewCrossCheckSystem(ws, cfg.Sim.RefCellSize, cfg.Sim.CrossCheckInterval, stats, log.Named("crosscheck"))

	runner.Register(system.NewInputSystem(bus, stats))
	if engine != nil {
		runner.Register(system.NewScriptSystem(ws, engine, stats))
	}
	runner.Register(system.NewMovementSystem(ws))
	runner.Register(system.NewIndexSyncSystem(ws, stats, log.Named("index")))
	runner.Register(contacts)
	runner.Register(crossCheck)
	if hub != nil {
		runner.Register(system.NewViewerSystem(ws, contacts, hub, cfg.Viewer.FrameInterval, stats, log.Named("viewer")))
	}
	runner.Register(statsSys)
	runner.Register(cleanup)

	// 8. Spawn bodies
	printSection("bodies")
	for i, b := range sc.Bodies {
		if _, err := ws.Spawn(b.Kind, b.Box, b.VX, b.VY); err != nil {
			return fmt.Errorf("spawn body %d: %w", i, err)
		}
	}
	printStat("bodies", ws.Len())
	for level, n := range ws.Index.Stats().Buckets {
		printStat(fmt.Sprintf("level %d buckets", level), n)
	}
	fmt.Println()

	// 9. Tick loop
	printReady(fmt.Sprintf("simulation running (tick: %s, ticks: %d)", cfg.Sim.TickRate, cfg.Sim.Ticks))
	start := time.Now()
	runErr := loop(ctx, runner, cfg.Sim)
	elapsed := time.Since(start)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info("simulation stopped", zap.Uint64("ticks", runner.Ticks()), zap.Duration("elapsed", elapsed))

	// 10. Shutdown
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	statsSys.Flush(flushCtx)
	if store != nil {
		if err := store.FinishRun(flushCtx, runID, runner.Ticks()); err != nil {
			log.Error("finish run", zap.Int64("run", runID), zap.Error(err))
		}
	}

	printSection("summary")
	tot := statsSys.Totals()
	checks, mismatches := crossCheck.Totals()
	printStat("ticks", tot.Ticks)
	for _, c := range ws.Components() {
		printStat(c.Name+" components", c.Count)
	}
	printStat("moves", tot.Moved)
	printStat("bucket changes", tot.Changed)
	printStat("query candidates", tot.Candidates)
	printStat("max contacts", tot.MaxContacts)
	printStat("contacts begun", tot.Began)
	printStat("buckets pruned", tot.Pruned)
	printStat("cross-checks", checks)
	printStat("mismatches", mismatches)
	if tot.Ticks > 0 {
		printStat("avg tick", (elapsed / time.Duration(tot.Ticks)).String())
	}
	if mismatches > 0 {
		return fmt.Errorf("index disagreed with reference grid %d times", mismatches)
	}
	return nil
}

// loop ticks until ctx is done or the configured tick count is reached.
// A zero tick rate runs ticks back to back with a fixed 50ms step.
func loop(ctx context.Context, runner *coresys.Runner, cfg config.SimConfig) error {
	step := cfg.TickRate
	if step <= 0 {
		step = 50 * time.Millisecond
	}
	done := func() bool {
		return cfg.Ticks > 0 && runner.Ticks() >= uint64(cfg.Ticks)
	}

	if cfg.TickRate <= 0 {
		for !done() {
			if err := ctx.Err(); err != nil {
				return err
			}
			runner.Tick(step)
		}
		return nil
	}

	ticker := time.NewTicker(cfg.TickRate)
	defer ticker.Stop()
	for !done() {
		select {
		case <-ticker.C:
			runner.Tick(step)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func loadScenario(cfg *config.Config) (*data.Scenario, error) {
	if cfg.Scenario.File != "" {
		return data.LoadScenario(cfg.Scenario.File)
	}
	bounds := defaultBounds
	if cfg.Index.InitialBounds != nil {
		b, err := cfg.Index.InitialBounds.Box()
		if err != nil {
			return nil, err
		}
		bounds = b
	}
	return data.GenerateScenario(data.GenerateOptions{
		Seed:     cfg.Sim.Seed,
		Bodies:   cfg.Scenario.Bodies,
		Bounds:   bounds,
		MinSize:  cfg.Scenario.MinBody,
		MaxSize:  cfg.Scenario.MaxBody,
		MaxSpeed: cfg.Scenario.MaxSpeed,
	})
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
