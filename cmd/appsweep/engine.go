package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/appsweep/internal/catalog"
	"github.com/eliteGoblin/focusd/appsweep/internal/config"
	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
	"github.com/eliteGoblin/focusd/appsweep/internal/infra"
	"github.com/eliteGoblin/focusd/appsweep/internal/scheduler"
	"github.com/eliteGoblin/focusd/appsweep/internal/usecase"
)

// engine wires the scan and removal components for one CLI invocation.
type engine struct {
	cfg       *config.Config
	mode      *infra.ExecModeConfig
	logger    *zap.Logger
	roots     []string
	discovery *usecase.Discovery
	remover   *usecase.Remover
	revealer  *infra.Revealer
	sched     *scheduler.Scheduler
}

func newEngine() (*engine, error) {
	detected := infra.DetectExecMode()

	path := configPath
	if path == "" {
		path = config.DefaultPath(detected.Home)
	}
	cfg, err := config.Load(path, detected.Home)
	if err != nil {
		return nil, err
	}

	logger := createLogger(cfg, verbose)
	mode := infra.NewExecModeConfig(detected.Mode, cfg.Home, cfg.SystemRoot, detected.IsRoot)

	roots := cfg.InstallationRoots
	if len(roots) == 0 {
		roots = mode.InstallationRoots
	}

	fs := infra.NewFileSystemManagerWithHome(cfg.Home)
	reader := infra.NewBundleReader()
	inspector := infra.NewProcessInspector(reader, logger)
	registry := catalog.NewRegistryWithHome(cfg.Home, cfg.SystemRoot)
	correlator := usecase.NewCorrelatorWithWorkers(registry, fs, cfg.SizeWorkers, logger)

	var trash *infra.Trash
	if cfg.TrashDir != "" {
		trash = infra.NewTrashWithDir(infra.FlavorMacOS, cfg.TrashDir, nil, logger)
	} else {
		trash = infra.NewTrash(cfg.Home, logger)
	}

	logger.Debug("engine ready",
		zap.String("mode", mode.Mode.String()),
		zap.String("home", cfg.Home),
		zap.Strings("installation_roots", roots),
		zap.String("trash", trash.Dir()),
		zap.Int("catalog_version", catalog.Version))

	return &engine{
		cfg:       cfg,
		mode:      mode,
		logger:    logger,
		roots:     roots,
		discovery: usecase.NewDiscovery(fs, reader, inspector, correlator, logger),
		remover:   usecase.NewRemover(trash, inspector, fs, registry, logger),
		revealer:  infra.NewRevealer(&infra.RealCommandRunner{}, logger),
		sched:     scheduler.New(scheduler.NewStore(), logger),
	}, nil
}

func (e *engine) close() {
	_ = e.logger.Sync()
}

// run starts task and blocks until its final event. Ctrl-C requests
// cancellation; the task still reports whatever it finished.
func (e *engine) run(task scheduler.Task, onEvent func(scheduler.Event)) (scheduler.Completion, error) {
	run, err := e.sched.Start(task)
	if err != nil {
		return scheduler.Completion{}, err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var done scheduler.Completion
	events := run.Events()
	for {
		select {
		case <-sigCh:
			if e.sched.Cancel() {
				fmt.Fprintln(os.Stderr, "\ncancelling...")
			}
		case ev, ok := <-events:
			if !ok {
				return done, nil
			}
			if ev.Done != nil {
				done = *ev.Done
				continue
			}
			if onEvent != nil {
				onEvent(ev)
			}
		}
	}
}

// scan runs a scan task with a progress line on stderr.
func (e *engine) scan(showProgress bool) (*domain.ScanResult, error) {
	progress := newProgressLine(os.Stderr, showProgress)
	done, err := e.run(scheduler.NewScanTask(e.discovery, e.roots), func(ev scheduler.Event) {
		progress.update(ev.Progress)
	})
	progress.clear()
	if err != nil {
		return nil, err
	}

	switch done.State {
	case scheduler.StateCompleted:
		return done.Scan, nil
	case scheduler.StateCancelled:
		return nil, errCancelled
	default:
		return nil, fmt.Errorf("scan failed: %w", done.Err)
	}
}

// refresh re-correlates one published record.
func (e *engine) refresh(bundlePath string) (domain.AppRecord, error) {
	done, err := e.run(scheduler.NewRefreshTask(e.discovery, bundlePath), nil)
	if err != nil {
		return domain.AppRecord{}, err
	}

	switch done.State {
	case scheduler.StateCompleted:
		return *done.Record, nil
	case scheduler.StateCancelled:
		return domain.AppRecord{}, errCancelled
	default:
		return domain.AppRecord{}, fmt.Errorf("refresh failed: %w", done.Err)
	}
}

func createLogger(cfg *config.Config, verbose bool) *zap.Logger {
	if verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}

	lvl, _ := cfg.Level()
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if err := os.MkdirAll(filepath.Dir(cfg.Log.Path), 0755); err == nil {
		zcfg.OutputPaths = []string{cfg.Log.Path}
		zcfg.ErrorOutputPaths = []string{cfg.Log.Path}
	}

	logger, err := zcfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
