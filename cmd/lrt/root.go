package main

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/js-runtime/cjs"
	"github.com/wippyai/js-runtime/config"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/errors"
	"github.com/wippyai/js-runtime/hooks"
	"github.com/wippyai/js-runtime/loader"
	"github.com/wippyai/js-runtime/registry"
	"github.com/wippyai/js-runtime/resolve"
	"github.com/wippyai/js-runtime/runtime"
)

// app carries global flags and the filesystem every command works on.
type app struct {
	fs       afero.Fs
	cfgFile  string
	cwd      string
	platform string
	preload  []string
	verbose  bool
}

func newApp() *app {
	return &app{fs: afero.NewOsFs()}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "lrt",
		Short: "Inspect how modules resolve and load",
		Long: titleStyle.Render("lrt") + ` resolves module specifiers, declares modules into a recording
engine, and builds the bytecode containers and registry archives the
loader consumes.

Configuration is read from ` + config.FileName + ` in the working directory
(or --config) and from ` + config.EnvPrefix + `_* environment variables.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./"+config.FileName+")")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&a.cwd, "cwd", "", "working directory modules resolve from")
	pf.StringVar(&a.platform, "platform", "", "platform condition: browser or node")
	pf.StringArrayVarP(&a.preload, "require", "r", nil, "CommonJS script to require before resolving (repeatable)")

	root.AddCommand(
		newResolveCommand(a),
		newLoadCommand(a),
		newPackCommand(a),
		newInspectCommand(a),
		newRegistryCommand(a),
		newConfigCommand(a),
		newExploreCommand(a),
	)
	return root
}

// config loads configuration and applies flag overrides.
func (a *app) config(ctx context.Context) (*config.Config, string, error) {
	dir := a.cwd
	if dir == "" {
		dir = "."
	}
	cfg, file, err := config.Load(ctx, config.LoadOptions{File: a.cfgFile, Dir: dir})
	if err != nil {
		return nil, "", err
	}
	if a.cwd != "" {
		cfg.Cwd = a.cwd
	}
	switch a.platform {
	case "":
	case resolve.PlatformBrowser, resolve.PlatformNode:
		cfg.Platform = a.platform
	default:
		return nil, "", errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(a.platform).
			Detail("--platform must be %q or %q", resolve.PlatformBrowser, resolve.PlatformNode).
			Build()
	}
	return cfg, file, nil
}

func (a *app) logger(cfg *config.Config) (*zap.Logger, error) {
	if a.verbose {
		return zap.NewDevelopment()
	}
	lvl, err := cfg.Log.ZapLevel()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	return zc.Build()
}

// session is a runtime backed by a recording engine.
type session struct {
	rt  *runtime.Runtime
	rec *engine.Recorder
	log *zap.Logger
}

func (a *app) session(ctx context.Context) (*session, error) {
	cfg, _, err := a.config(ctx)
	if err != nil {
		return nil, err
	}
	log, err := a.logger(cfg)
	if err != nil {
		return nil, err
	}
	setPackageLoggers(log)

	rec := engine.NewRecorder()
	rt, err := runtime.New(ctx,
		runtime.WithConfig(cfg),
		runtime.WithLogger(log),
		runtime.WithFs(a.fs),
		runtime.WithEngine(rec),
	)
	if err != nil {
		return nil, fmt.Errorf("init runtime: %w", err)
	}
	for _, script := range a.preload {
		if err := rt.Preload(ctx, script); err != nil {
			return nil, fmt.Errorf("require %s: %w", script, err)
		}
	}
	return &session{rt: rt, rec: rec, log: log}, nil
}

func setPackageLoggers(l *zap.Logger) {
	resolve.SetLogger(l)
	registry.SetLogger(l)
	engine.SetLogger(l)
	hooks.SetLogger(l)
	loader.SetLogger(l)
	cjs.SetLogger(l)
}
