package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/npratt/growth/internal/arbiter"
	"github.com/npratt/growth/internal/clock"
	"github.com/npratt/growth/internal/config"
	"github.com/npratt/growth/internal/controller"
	"github.com/npratt/growth/internal/daemon"
	"github.com/npratt/growth/internal/events"
	"github.com/npratt/growth/internal/intent"
	"github.com/npratt/growth/internal/persist"
	"github.com/npratt/growth/internal/progress"
	"github.com/npratt/growth/internal/resolver"
	"github.com/npratt/growth/internal/schedule"
	"github.com/npratt/growth/internal/session"
	"github.com/npratt/growth/internal/shutdown"
	"github.com/npratt/growth/internal/timer"
	"github.com/npratt/growth/internal/tui"
)

const (
	shutdownTimeout = 10 * time.Second
	tuiBufferSize   = 5000
)

// loadStartConfig loads config files and applies explicitly set start flags.
func loadStartConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed(FlagLogFile) {
		cfg.Paths.Log = viper.GetString(FlagLogFile)
	}
	if flags.Changed(FlagStateFile) {
		cfg.Paths.State = viper.GetString(FlagStateFile)
	}
	if flags.Changed(FlagSocketPath) {
		cfg.Paths.Socket = viper.GetString(FlagSocketPath)
	}
	if flags.Changed(FlagRoutine) {
		cfg.Routine.File = viper.GetString(FlagRoutine)
	}
	if flags.Changed(FlagDay) {
		cfg.Routine.Day = viper.GetInt(FlagDay)
	}
	if flags.Changed(FlagAutoProgression) {
		cfg.Session.AutoProgression = viper.GetBool(FlagAutoProgression)
	}
	if flags.Changed(FlagIntentEnabled) {
		cfg.Intent.Enabled = viper.GetBool(FlagIntentEnabled)
	}
	if flags.Changed(FlagProgressEnabled) {
		cfg.Progress.Enabled = viper.GetBool(FlagProgressEnabled)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// sinkSet owns the event sinks and the router feeding them.
type sinkSet struct {
	router *events.Router
	cancel context.CancelFunc
	stops  []func() error
	db     *progress.DB
}

func (s *sinkSet) Close() {
	s.cancel()
	s.router.Close()
	for _, stop := range s.stops {
		_ = stop()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// startSinks subscribes the event log, the crash recovery state file and,
// when enabled, the progress database to the router.
func startSinks(ctx context.Context, cfg *config.Config, router *events.Router, logger *slog.Logger) (*sinkSet, error) {
	sinkCtx, cancel := context.WithCancel(ctx)
	set := &sinkSet{router: router, cancel: cancel}

	logSink := events.NewLogSink(cfg.Paths.Log, logger)
	if err := logSink.Start(sinkCtx, router.Subscribe()); err != nil {
		set.Close()
		return nil, fmt.Errorf("start log sink: %w", err)
	}
	set.stops = append(set.stops, logSink.Stop)

	stateSink := events.NewStateSink(cfg.Paths.State, logger)
	if err := stateSink.Start(sinkCtx, router.SubscribeBuffered(events.StateBufferSize)); err != nil {
		set.Close()
		return nil, fmt.Errorf("start state sink: %w", err)
	}
	set.stops = append(set.stops, stateSink.Stop)

	if cfg.Progress.Enabled {
		db, err := progress.Open(cfg.Paths.Progress)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("open progress database: %w", err)
		}
		set.db = db
		progressSink := progress.NewSink(db, logger)
		if err := progressSink.Start(sinkCtx, router.SubscribeBuffered(events.StateBufferSize)); err != nil {
			set.Close()
			return nil, fmt.Errorf("start progress sink: %w", err)
		}
		set.stops = append(set.stops, progressSink.Stop)
	}

	return set, nil
}

// newController builds the engine components around one router and clock.
func newController(cfg *config.Config, router *events.Router, clk clock.Clock, logger *slog.Logger) *controller.Controller {
	var store persist.Store = persist.NewMemoryStore()
	if cfg.Timer.Persist {
		store = persist.NewFileStore(cfg.Paths.Timer, logger)
	}

	return controller.New(cfg, controller.Deps{
		Engine:      timer.New(clk, store, router, logger),
		Gate:        arbiter.New(logger),
		Progression: session.New(clk, router, logger),
		Resolver:    resolver.New(clk, router, logger),
		Router:      router,
		Clock:       clk,
		Logger:      logger,
	})
}

// startEngine starts the controller loop and the tick scheduler, which run
// until ctx is canceled, then loads the configured day and restores a run
// persisted by a previous process. The returned channel yields the
// controller's exit error.
func startEngine(ctx context.Context, ctrl *controller.Controller, routine schedule.Routine, day int, prior map[string]session.Record, logger *slog.Logger) (<-chan error, error) {
	done := make(chan error, 1)
	go func() {
		done <- ctrl.Run(ctx)
	}()
	go ctrl.RunScheduler(ctx)

	if err := ctrl.LoadDay(routine, day, prior); err != nil {
		return done, fmt.Errorf("load day %d: %w", day, err)
	}
	if err := ctrl.Restore(); err != nil {
		logger.Warn("restore failed", "error", err)
	}
	return done, nil
}

func runStart(cmd *cobra.Command, logger *slog.Logger, logLevel *slog.LevelVar) error {
	daemonMode := viper.GetBool(FlagDaemon)

	// Explicit flag wins; otherwise use the TUI on a terminal.
	tuiEnabled := viper.GetBool(FlagTUI)
	if !cmd.Flags().Changed(FlagTUI) && !daemonMode {
		tuiEnabled = term.IsTerminal(int(os.Stdout.Fd()))
	}
	if tuiEnabled && daemonMode {
		return fmt.Errorf("--tui and --daemon flags are incompatible")
	}

	if viper.GetBool(FlagVerbose) {
		logLevel.Set(slog.LevelDebug)
		logger.Debug("verbose logging enabled")
	}

	cfg, err := loadStartConfig(cmd)
	if err != nil {
		return err
	}

	projectRoot := daemon.FindProjectRoot("")
	cfg.Paths, err = daemon.ResolvePaths(cfg.Paths, projectRoot)
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg.Routine.File, err = config.FindRoutine(cfg.Routine.File, projectRoot)
	if err != nil {
		return err
	}

	routine, err := schedule.LoadRoutine(cfg.Routine.File)
	if err != nil {
		return fmt.Errorf("load routine: %w", err)
	}
	if _, err := routine.Day(cfg.Routine.Day); err != nil {
		return err
	}

	pidFile := daemon.NewPIDFile(cfg.Paths.PID)
	if daemonMode {
		client := daemon.NewClient(cfg.Paths.Socket)
		if client.IsRunning() {
			return fmt.Errorf("daemon already running (socket: %s)", cfg.Paths.Socket)
		}
		pidFile.CleanupStale(cfg.Paths.Socket)

		shouldExit, _, err := daemon.Daemonize(cfg.Paths.Socket)
		if err != nil {
			return fmt.Errorf("daemonize: %w", err)
		}
		if shouldExit {
			return nil
		}
	}

	if err := pidFile.Write(); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return fmt.Errorf("growth is already running for this project: %w", err)
		}
		return err
	}
	defer func() { _ = pidFile.Remove() }()

	// TUI mode: every component logs to the rotating debug file.
	if tuiEnabled {
		sessionLog, err := openSessionLog(filepath.Dir(cfg.Paths.Log), logLevel, cfg.LogRotation, routine.ID, cfg.Routine.Day)
		if err != nil {
			return err
		}
		defer func() { _ = sessionLog.Close() }()
		logger = sessionLog.Logger
		slog.SetDefault(logger)
	}

	logger.Info("growth starting",
		"version", version,
		"routine", routine.ID,
		"routine_file", cfg.Routine.File,
		"day", cfg.Routine.Day,
		"config_files", cfg.Sources,
		"log_file", cfg.Paths.Log,
		"state_file", cfg.Paths.State,
		"daemon_mode", daemonMode,
		"tui", tuiEnabled,
	)

	infoPath := daemon.DaemonInfoPath(projectRoot)
	info := &daemon.DaemonInfo{
		SocketPath: cfg.Paths.Socket,
		PIDPath:    cfg.Paths.PID,
		LogPath:    cfg.Paths.Log,
		StartTime:  time.Now(),
		PID:        os.Getpid(),
	}
	if err := daemon.WriteDaemonInfo(infoPath, info); err != nil {
		logger.Warn("failed to write daemon info", "error", err)
	}
	defer func() { _ = daemon.RemoveDaemonInfo(infoPath) }()

	prior := recoverRecords(cfg.Paths.State, routine.ID, cfg.Routine.Day, logger)

	router := events.NewRouter(events.DefaultBufferSize)
	router.SetLogger(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sinks, err := startSinks(ctx, cfg, router, logger)
	if err != nil {
		return err
	}
	defer sinks.Close()

	clk := clock.New()
	ctrl := newController(cfg, router, clk, logger)

	var watcher *intent.Watcher
	if cfg.Intent.Enabled {
		watcher = intent.New(&cfg.Intent, cfg.Paths.Intent, ctrl, clk, logger)
	}
	stopWatcher := func() {
		if watcher != nil {
			_ = watcher.Stop()
		}
	}

	dmn := daemon.New(cfg, ctrl, logger)
	dmn.OnShutdown(cancel)

	if tuiEnabled {
		return runTUI(ctx, cancel, cfg, ctrl, dmn, watcher, router, routine, prior, logger)
	}

	return shutdown.Run(ctx, logger, shutdownTimeout,
		func(runCtx context.Context) error {
			engineCtx, engineCancel := context.WithCancel(runCtx)
			defer engineCancel()

			ctrlDone, err := startEngine(engineCtx, ctrl, routine, cfg.Routine.Day, prior, logger)
			if err != nil {
				engineCancel()
				<-ctrlDone
				return err
			}
			if watcher != nil {
				if err := watcher.Start(engineCtx); err != nil {
					logger.Warn("intent watcher not started", "error", err)
				}
			}

			daemonDone := make(chan error, 1)
			go func() {
				daemonDone <- dmn.Start(engineCtx)
			}()

			select {
			case err := <-daemonDone:
				engineCancel()
				ctrlErr := <-ctrlDone
				if err != nil {
					return fmt.Errorf("daemon server: %w", err)
				}
				return ctrlErr
			case err := <-ctrlDone:
				engineCancel()
				<-daemonDone
				return err
			}
		},
		func(context.Context) error {
			stopWatcher()
			return nil
		},
	)
}

// runTUI runs the terminal UI in the foreground with the engine and the
// control socket in the background. Quitting the UI shuts the engine down.
func runTUI(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg *config.Config,
	ctrl *controller.Controller,
	dmn *daemon.Daemon,
	watcher *intent.Watcher,
	router *events.Router,
	routine schedule.Routine,
	prior map[string]session.Record,
	logger *slog.Logger,
) error {
	// Subscribe before the day loads so the UI sees the session event.
	tuiEvents := router.SubscribeBuffered(tuiBufferSize)
	defer router.Unsubscribe(tuiEvents)

	ctrlDone, err := startEngine(ctx, ctrl, routine, cfg.Routine.Day, prior, logger)
	if err != nil {
		cancel()
		<-ctrlDone
		return err
	}
	if watcher != nil {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("intent watcher not started", "error", err)
		}
		defer func() { _ = watcher.Stop() }()
	}

	daemonDone := make(chan struct{})
	go func() {
		defer close(daemonDone)
		if err := dmn.Start(ctx); err != nil {
			logger.Error("daemon server error", "error", err)
		}
	}()

	app := tui.New(tuiEvents, ctrl,
		tui.WithOnQuit(cancel),
		tui.WithQuickPractice(cfg.Quick.Name, cfg.Quick.Duration),
	)
	tuiErr := app.Run()

	cancel()
	<-ctrlDone
	<-daemonDone
	return tuiErr
}
