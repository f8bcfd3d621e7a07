//go:build linux

// imbridge-ibus serves table input methods to the IBus daemon.
//
// ibus-daemon starts it with -ibus from the component file written by
// -install; it can also be run by hand against a running daemon.
//
// Installation:
//  1. Copy the binary to /usr/local/bin/imbridge-ibus
//  2. Run: imbridge-ibus -install
//  3. Restart IBus: ibus restart
//  4. Enable an engine via ibus-setup or GNOME Settings > Keyboard > Input Sources
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"

	"imbridge/internal/config"
	"imbridge/internal/engine"
	"imbridge/internal/ibus"
	"imbridge/internal/im/table"
	"imbridge/internal/logging"
)

const (
	componentName = "org.freedesktop.IBus.Imbridge"
	componentFile = "imbridge.xml"
	version       = "1.0.0"

	crashRetention = 30 * 24 * time.Hour
)

func main() {
	configPath := flag.String("config", "", "Configuration file (default: "+config.ConfigPath()+")")
	ibusFlag := flag.Bool("ibus", false, "Request the bus name, as when launched by ibus-daemon")
	listFlag := flag.Bool("list", false, "List available tables and exit")
	xmlFlag := flag.Bool("xml", false, "Print the IBus component XML and exit")
	installFlag := flag.Bool("install", false, "Install IBus component")
	uninstallFlag := flag.Bool("uninstall", false, "Uninstall IBus component")
	flag.Parse()

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	for _, w := range config.Lint(cfg).Warnings() {
		logger.Warn("configuration", "field", w.Field, "problem", w.Message)
	}

	driver := table.NewDriver(cfg.Tables.Dirs, logger.WithComponent("table").Logger)

	switch {
	case *listFlag:
		listTables(cfg, driver)
		return
	case *xmlFlag:
		if err := ibus.WriteComponent(os.Stdout, buildComponent(cfg, driver)); err != nil {
			log.Fatalf("Failed to write component: %v", err)
		}
		return
	case *installFlag:
		if _, created, err := config.LoadOrCreate(loader.Path()); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		} else if created {
			log.Printf("Wrote default configuration to %s", loader.Path())
		}
		if err := installComponent(cfg, driver); err != nil {
			log.Fatalf("Failed to install: %v", err)
		}
		log.Println("Installed successfully. Run 'ibus restart' to load.")
		return
	case *uninstallFlag:
		if err := uninstallComponent(); err != nil {
			log.Fatalf("Failed to uninstall: %v", err)
		}
		log.Println("Uninstalled successfully.")
		return
	}

	if err := run(loader, driver, logger, *ibusFlag); err != nil {
		logger.Error("imbridge-ibus stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(c config.LoggingConfig) (*logging.Logger, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(&logging.Config{
		Level:      level,
		Format:     format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSize:    int64(c.MaxSizeMB),
		MaxAge:     c.MaxAgeDays,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
		Component:  "imbridge-ibus",
	})
}

func run(loader *config.Loader, driver *table.Driver, logger *logging.Logger, requestName bool) error {
	cfg := loader.Config()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := cfg.IBus.Address
	if addr == "" {
		var err error
		if addr, err = ibus.Address(); err != nil {
			return err
		}
	}
	conn, err := ibus.Connect(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	var service engine.ConfigService
	if cfg.IBus.UseIBusConfig {
		service = ibus.NewConfigClient(conn, logger.Logger)
	} else {
		service = config.NewFileService(loader, logger.Logger)
		if err := loader.Watch(); err != nil {
			logger.Warn("configuration changes will not be picked up", "path", loader.Path(), "error", err)
		}
		go reportLoaderErrors(ctx, loader, logger)
	}
	defer loader.Close()

	registry := engine.NewRegistry(driver, engine.Options{
		Prefix: cfg.IBus.EnginePrefix,
		Config: service,
		Highlight: func(name string) bool {
			return loader.Config().EngineDefaults(name).PreeditHighlight
		},
		Logger: logger.WithComponent("engine").Logger,
	})
	defer func() {
		for _, c := range registry.Classes() {
			logger.Debug("closing engine", "engine", c.Name(), "sessions", c.Refs())
		}
		if err := registry.Close(); err != nil {
			logger.Warn("close engines", "error", err)
		}
	}()

	crash := logging.NewCrashHandler(&logging.CrashHandlerConfig{
		CrashDir:  logging.DefaultCrashDir(),
		Version:   version,
		Component: "imbridge-ibus",
		Logger:    logger.Logger,
	})
	if err := crash.CleanupOldCrashReports(crashRetention); err != nil {
		logger.Warn("clean crash reports", "error", err)
	}

	factory := ibus.NewFactory(conn, registry, logger.Logger)
	factory.SetCrashHandler(crash)
	if err := factory.Export(); err != nil {
		return err
	}
	defer factory.Close()

	if requestName {
		reply, err := conn.RequestName(cfg.IBus.BusName, dbus.NameFlagDoNotQueue)
		if err != nil {
			return fmt.Errorf("request bus name: %w", err)
		}
		if reply != dbus.RequestNameReplyPrimaryOwner {
			return fmt.Errorf("bus name %s already taken", cfg.IBus.BusName)
		}
	}

	logger.Info("imbridge-ibus started", "address", addr, "bus_name", cfg.IBus.BusName, "tables", len(driver.List()))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-conn.Context().Done():
		logger.Info("ibus connection closed")
	}
	return nil
}

func reportLoaderErrors(ctx context.Context, loader *config.Loader, logger *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-loader.Errors():
			logger.Warn("configuration reload", "error", err)
		}
	}
}

func listTables(cfg *config.Config, driver *table.Driver) {
	for _, def := range driver.List() {
		fmt.Printf("%-24s %-12s %s\n", def.EngineName(cfg.IBus.EnginePrefix), def.DisplayTitle(), def.Description)
	}
}

func buildComponent(cfg *config.Config, driver *table.Driver) ibus.Component {
	exec, err := os.Executable()
	if err != nil {
		exec = "/usr/local/bin/imbridge-ibus"
	}

	c := ibus.Component{
		Name:        cfg.IBus.BusName,
		Description: "Table input methods",
		Exec:        exec + " -ibus",
		Version:     version,
		Author:      "imbridge",
		License:     "MIT",
		Textdomain:  "imbridge",
	}
	if c.Name == "" {
		c.Name = componentName
	}

	for _, def := range driver.List() {
		name := def.EngineName(cfg.IBus.EnginePrefix)
		d := cfg.EngineDefaults(name)

		desc := ibus.EngineDesc{
			Name:        name,
			Language:    def.Language,
			License:     "MIT",
			Author:      "imbridge",
			Layout:      "default",
			LongName:    d.LongName,
			Description: def.Description,
			Symbol:      d.Symbol,
			Rank:        d.Rank,
		}
		if desc.LongName == "" {
			desc.LongName = fmt.Sprintf("%s (%s)", def.Name, def.Language)
		}
		if desc.Symbol == "" {
			desc.Symbol = def.DisplayTitle()
		}
		c.Engines = append(c.Engines, desc)
	}
	return c
}

func installComponent(cfg *config.Config, driver *table.Driver) error {
	dir, err := ibus.ComponentDir()
	if err != nil {
		return err
	}
	return ibus.InstallComponent(dir, componentFile, buildComponent(cfg, driver))
}

func uninstallComponent() error {
	dir, err := ibus.ComponentDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, componentFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
