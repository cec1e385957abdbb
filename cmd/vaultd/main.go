package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"poolvault/config"
	"poolvault/core/genesis"
	"poolvault/core/state"
	"poolvault/native/shares"
	"poolvault/native/vault"
	"poolvault/observability/logging"
	"poolvault/rpc"
	"poolvault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	manifestFlag := flag.String("manifest", "", "Path to a pool manifest YAML file (overrides config ManifestFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv("POOLVAULT_ENV"))
	var sink io.Writer
	if strings.TrimSpace(cfg.LogFile) != "" {
		sink = logging.RotatingSink(cfg.LogFile)
	}
	logger := logging.Setup("vaultd", env, sink)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	kv := state.NewDatabaseKV(db)
	engine := vault.NewEngine(kv)
	if strings.TrimSpace(cfg.WrappedNative) != "" {
		wrapped, err := cfg.WrappedNativeToken()
		if err != nil {
			logger.Error("Invalid wrapped-native token", slog.Any("error", err))
			os.Exit(1)
		}
		engine.SetWrappedNative(wrapped)
	}
	shareLedger := shares.NewLedger(state.NewManager(kv), shares.NewFacadeRegistry(), nil)

	manifestPath := strings.TrimSpace(*manifestFlag)
	if manifestPath == "" {
		manifestPath = strings.TrimSpace(cfg.ManifestFile)
	}
	if manifestPath != "" {
		manifest, err := genesis.LoadManifest(manifestPath)
		if err != nil {
			logger.Error("Failed to load pool manifest", slog.Any("error", err))
			os.Exit(1)
		}
		registered, err := manifest.Apply(engine)
		if err != nil {
			logger.Error("Failed to apply pool manifest", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Applied pool manifest",
			slog.String("path", manifestPath),
			slog.Int("newPools", registered))
	}

	server := rpc.NewServer(engine, shareLedger)
	logger.Info("Starting JSON-RPC server",
		slog.String("address", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
