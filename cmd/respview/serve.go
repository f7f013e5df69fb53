package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/respview/pkg/browser"
	"github.com/odvcencio/respview/pkg/browser/adapters/cdp"
	"github.com/odvcencio/respview/pkg/bus"
	"github.com/odvcencio/respview/pkg/config"
	"github.com/odvcencio/respview/pkg/devices"
	"github.com/odvcencio/respview/pkg/mirror"
	"github.com/odvcencio/respview/pkg/observability"
	"github.com/odvcencio/respview/pkg/server"
	"github.com/odvcencio/respview/pkg/storage"
)

const ephemeralSweepInterval = time.Minute

var serveNewHostFn = func(ctx context.Context, cfg cdp.Config) (browser.Host, error) {
	return cdp.NewHost(ctx, cfg)
}

func loadConfig(path string) (*config.Config, error) {
	if strings.TrimSpace(path) != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func runServeCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a config file (default: ~/.respview/config.yaml then ./.respview/config.yaml)")
	bind := fs.String("bind", "", "address to bind the HTTP server")
	controlURL := fs.String("control-url", "", "DevTools URL of a running browser (default: launch one)")
	headless := fs.Bool("headless", false, "launch the browser headless")
	devicesFile := fs.String("devices", "", "YAML file with extra or replacement device presets")
	watch := fs.Bool("watch", false, "reload the devices file when it changes")
	var origins []string
	fs.Var(&stringListValue{target: &origins}, "allow-origin", "allowed Origin (repeatable, accepts comma-separated list)")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return configError(err)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bind":
			cfg.Server.Bind = *bind
		case "control-url":
			cfg.Browser.ControlURL = *controlURL
		case "headless":
			cfg.Browser.Headless = *headless
		case "devices":
			cfg.Devices.OverridePath = *devicesFile
		case "watch":
			cfg.Devices.Watch = *watch
		case "allow-origin":
			cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, origins...)
		}
	})
	if err := cfg.Validate(); err != nil {
		return configError(fmt.Errorf("config validation: %w", err))
	}

	return serve(ctx, cfg)
}

func serve(ctx context.Context, cfg *config.Config) (err error) {
	logOpts := cfg.LogOptions()
	logOpts.Output = os.Stderr
	log := observability.NewLogger("respview", logOpts)

	if cfg.Tracing.Enabled {
		tp, terr := observability.NewTracerProvider("respview", version, os.Stderr)
		if terr != nil {
			return terr
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	catalog, err := devices.NewCatalog()
	if err != nil {
		return fmt.Errorf("load device catalog: %w", err)
	}
	devicesPath := cfg.DevicesPath()
	if devicesPath != "" && !cfg.Devices.Watch {
		if err := catalog.LoadOverrides(devicesPath); err != nil {
			return configError(fmt.Errorf("load device overrides: %w", err))
		}
	}

	store, err := storage.New(cfg.SQLitePath())
	if err != nil {
		return fmt.Errorf("open preferences: %w", err)
	}
	defer store.Close()
	ephemeral := storage.NewEphemeral(cfg.Storage.EphemeralTTL)

	mb, err := bus.New(cfg.BusConfig())
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	defer mb.Close()

	host, err := serveNewHostFn(ctx, cfg.CDP())
	if err != nil {
		return withExitCode(fmt.Errorf("connect browser: %w", err), exitBrowser)
	}
	defer func() {
		if cerr := host.Close(); cerr != nil && !browser.IsGone(cerr) {
			log.Warn("browser close failed", "error", cerr)
		}
	}()

	registry, err := mirror.NewRegistry(mirror.RegistryConfig{
		Host:    host,
		Presets: catalog,
		Options: cfg.MirrorOptions(),
		Logger:  log.Component("mirror"),
	})
	if err != nil {
		return err
	}

	inputRate, inputBurst := cfg.InputLimit()
	srv, err := server.New(server.Config{
		BindAddress:    cfg.Server.Bind,
		ChannelPrefix:  cfg.Server.ChannelPrefix,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PingInterval:   cfg.Server.PingInterval,
		PingTimeout:    cfg.Server.PingTimeout,
		InputRate:      inputRate,
		InputBurst:     inputBurst,
		SubjectPrefix:  cfg.Bus.SubjectPrefix,
	}, server.Deps{
		Registry:  registry,
		Catalog:   catalog,
		Store:     store,
		Ephemeral: ephemeral,
		Bus:       mb,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error {
		ephemeral.RunSweeper(gctx, ephemeralSweepInterval)
		return nil
	})
	if devicesPath != "" && cfg.Devices.Watch {
		watcher := devices.NewWatcher(catalog, devicesPath)
		watcher.Subscribe(func(path string, err error) {
			if err != nil {
				log.Warn("device presets reload failed", "path", path, "error", err)
				return
			}
			log.Info("device presets reloaded", "path", path, "count", len(catalog.List()))
		})
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type stringListValue struct {
	target *[]string
}

func (s *stringListValue) String() string {
	if s == nil || s.target == nil {
		return ""
	}
	return strings.Join(*s.target, ",")
}

func (s *stringListValue) Set(value string) error {
	if s.target == nil {
		return fmt.Errorf("no target slice configured")
	}
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		*s.target = append(*s.target, trimmed)
	}
	return nil
}
