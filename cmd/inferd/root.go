package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"inferd/internal/config"
	"inferd/internal/hardware"
	"inferd/internal/httpapi"
	"inferd/internal/manager"
	"inferd/internal/planner"
	"inferd/internal/registry"
	"inferd/internal/store"
	"inferd/internal/supervisor"
	"inferd/pkg/types"
)

const (
	defaultAddr      = ":8085"
	defaultModelsDir = "~/models/llm"
	defaultPortStart = 31000
	defaultPortEnd   = 31999
)

type cliFlags struct {
	configPath string
	addr       string
	modelsDir  string
	portStart  int
	portEnd    int
	backendBin string
	logLevel   string
	logFile    string
	watch      bool
}

func buildRootCmd() *cobra.Command {
	var fl cliFlags
	root := &cobra.Command{
		Use:           "inferd",
		Short:         "Local inference model daemon",
		Long:          "inferd plans memory placement for local inference models, supervises their backend server processes and exposes a lifecycle HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(fl)
		},
	}
	root.Flags().StringVar(&fl.configPath, "config", "", "Path to config file (.yaml, .json or .toml)")
	root.Flags().StringVar(&fl.addr, "addr", "", "HTTP listen address, e.g. :8085")
	root.Flags().StringVar(&fl.modelsDir, "models-dir", "", "Directory to scan for *.gguf model files")
	root.Flags().IntVar(&fl.portStart, "port-range-start", 0, "First backend listen port")
	root.Flags().IntVar(&fl.portEnd, "port-range-end", 0, "Last backend listen port")
	root.Flags().StringVar(&fl.backendBin, "llama-bin", "", "Path to the llama.cpp server binary")
	root.Flags().StringVar(&fl.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.Flags().StringVar(&fl.logFile, "log-file", "", "Log to this file with rotation instead of stderr")
	root.Flags().BoolVar(&fl.watch, "watch-models", false, "Watch the models directory for changes")
	return root
}

// resolveConfig merges file config with flag overrides; flags win.
func resolveConfig(fl cliFlags) (config.Config, error) {
	var cfg config.Config
	if fl.configPath != "" {
		loaded, err := config.Load(fl.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if fl.addr != "" {
		cfg.Addr = fl.addr
	}
	if fl.modelsDir != "" {
		cfg.ModelsDir = fl.modelsDir
	}
	if fl.portStart != 0 {
		cfg.PortRangeStart = fl.portStart
	}
	if fl.portEnd != 0 {
		cfg.PortRangeEnd = fl.portEnd
	}
	if fl.logLevel != "" {
		cfg.LogLevel = fl.logLevel
	}
	if fl.logFile != "" {
		cfg.LogFile = fl.logFile
	}
	if fl.watch {
		cfg.WatchModels = true
	}
	if fl.backendBin != "" {
		if cfg.Backends == nil {
			cfg.Backends = map[string]config.BackendFileConfig{}
		}
		be := cfg.Backends[string(types.BackendLlamaCpp)]
		be.Executable = fl.backendBin
		cfg.Backends[string(types.BackendLlamaCpp)] = be
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = defaultModelsDir
	}
	if cfg.PortRangeStart == 0 {
		cfg.PortRangeStart = defaultPortStart
	}
	if cfg.PortRangeEnd == 0 {
		cfg.PortRangeEnd = defaultPortEnd
	}
	if cfg.DefaultBackend == "" {
		cfg.DefaultBackend = string(types.BackendLlamaCpp)
	}
	return cfg, nil
}

func setupLogger(cfg config.Config) zerolog.Logger {
	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		maxSize := cfg.LogMaxSize
		if maxSize <= 0 {
			maxSize = 10
		}
		out = &lumberjack.Logger{
			Filename: cfg.LogFile,
			MaxSize:  maxSize,
		}
	}
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil && cfg.LogLevel != "" {
		level = parsed
	}
	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	// Internal packages log through the standard logger; route it too.
	log.SetFlags(0)
	log.SetOutput(zl)
	return zl
}

func backendConfigs(cfg config.Config) map[types.BackendType]manager.BackendConfig {
	out := make(map[types.BackendType]manager.BackendConfig, len(cfg.Backends))
	for name, be := range cfg.Backends {
		if be.Executable == "" {
			continue
		}
		out[types.BackendType(name)] = manager.BackendConfig{
			Executable: be.Executable,
			ExtraArgs:  append([]string(nil), be.ExtraArgs...),
			HealthPath: be.HealthPath,
		}
	}
	return out
}

func run(fl cliFlags) error {
	cfg, err := resolveConfig(fl)
	if err != nil {
		return err
	}
	zl := setupLogger(cfg)

	hw := hardware.Detect()
	st, err := store.Open(cfg.ModelsDir)
	if err != nil {
		return err
	}
	pl := planner.New(hw, planner.Config{
		RuntimeMultiplier: cfg.RuntimeMultiplier,
		MinVRAMFraction:   cfg.MinVRAMFraction,
	})
	reg := registry.New()
	ports, err := supervisor.NewPortAllocator(cfg.PortRangeStart, cfg.PortRangeEnd)
	if err != nil {
		return err
	}

	events := httpapi.NewWSPublisher()
	mgr, err := manager.New(manager.Config{
		Store:                   st,
		Planner:                 pl,
		Registry:                reg,
		Ports:                   ports,
		Publisher:               events,
		Backends:                backendConfigs(cfg),
		DefaultBackend:          types.BackendType(cfg.DefaultBackend),
		StartupTimeout:          time.Duration(cfg.StartupTimeoutSec) * time.Second,
		GracefulShutdownTimeout: time.Duration(cfg.GracefulShutdownTimeoutSec) * time.Second,
	})
	if err != nil {
		return err
	}
	defer mgr.Close()

	httpapi.SetLogger(zl)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders)
	mux := httpapi.NewMux(mgr, events)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.WatchModels {
		go func() {
			if err := st.Watch(ctx); err != nil {
				zl.Warn().Err(err).Msg("model watcher stopped")
			}
		}()
	}
	go mgr.ReconcileLoop(ctx, 5*time.Second)

	errCh := make(chan error, 1)
	go func() {
		zl.Info().
			Str("addr", cfg.Addr).
			Str("models_dir", st.Dir()).
			Int("models", st.Count()).
			Int("gpus", len(hw.Devices())).
			Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn().Err(err).Msg("graceful shutdown error")
	}
	n := mgr.UnloadAll()
	zl.Info().Int("unloaded", n).Msg("inferd stopped")
	return nil
}
