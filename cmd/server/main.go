package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/NicolasHaas/staffchat/pkg/directory"
	"github.com/NicolasHaas/staffchat/pkg/logging"
	"github.com/NicolasHaas/staffchat/pkg/server"
	"github.com/NicolasHaas/staffchat/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	configFile := flag.String("config", "", "YAML config file (flags override it)")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP bind address")
	flag.StringVar(&cfg.WSAddr, "ws", cfg.WSAddr, "WebSocket bind address (empty to disable)")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")
	flag.StringVar(&cfg.UsersFile, "users", cfg.UsersFile, "User store path")
	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "User store backend: file or sqlite")
	flag.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Per-connection idle read timeout (0 = none)")
	exportUsers := flag.Bool("export-users", false, "Export all users as YAML and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	if *showVersion {
		fmt.Println("staffchat-server", version.Full())
		return
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	if *configFile != "" {
		if err := server.LoadConfig(*configFile, &cfg); err != nil {
			slog.Error("load config", "path", *configFile, "err", err)
			os.Exit(1)
		}
		// Re-apply flags so explicit flags win over file values.
		flag.Parse()
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("open user store", "path", cfg.UsersFile, "err", err)
		os.Exit(1)
	}

	dir, err := directory.New(store)
	if err != nil {
		slog.Error("load directory", "err", err)
		os.Exit(1)
	}

	// Handle export command (run and exit)
	if *exportUsers {
		data, err := server.ExportUsersYAML(dir)
		if err != nil {
			slog.Error("export users", "err", err)
			os.Exit(1)
		}
		fmt.Print(string(data))
		_ = dir.Close()
		return
	}

	srv := server.New(cfg, server.Dependencies{Directory: dir})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func openStore(cfg server.Config) (directory.UserStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return directory.NewSQLiteStore(cfg.UsersFile)
	default:
		return directory.NewFileStore(cfg.UsersFile), nil
	}
}
