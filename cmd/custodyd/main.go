// custodyd serves the conditional value custody engine over HTTP.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/liquidityos/custody-engine-go/adapters/memory"
	"github.com/liquidityos/custody-engine-go/adapters/registry"
	"github.com/liquidityos/custody-engine-go/adapters/sqlite"
	"github.com/liquidityos/custody-engine-go/config"
	"github.com/liquidityos/custody-engine-go/custody"
	"github.com/liquidityos/custody-engine-go/domain"
	"github.com/liquidityos/custody-engine-go/server"
)

func main() {
	configPath := flag.String("config", "custodyd.yaml", "path to YAML config")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	program, err := domain.ParseAddress(cfg.ProgramID)
	if err != nil {
		log.Error("parse program id", "error", err)
		os.Exit(1)
	}

	var records custody.RecordStore
	if cfg.StorePath != "" {
		store, err := sqlite.Open(cfg.StorePath)
		if err != nil {
			log.Error("open record store", "path", cfg.StorePath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		records = store
		log.Info("using sqlite record store", "path", cfg.StorePath)
	} else {
		records = memory.NewRecordStore()
		log.Warn("using in-memory record store; records do not survive restarts")
	}

	var audit custody.RegistryLogger
	if cfg.RegistryPath != "" {
		jsonl, err := registry.NewJSONLStore(cfg.RegistryPath)
		if err != nil {
			log.Error("open registry store", "path", cfg.RegistryPath, "error", err)
			os.Exit(1)
		}
		defer jsonl.Close()
		audit = jsonl
		log.Info("using jsonl registry", "path", cfg.RegistryPath)
	} else {
		audit = registry.NewSlogRegistry(log)
	}

	values := memory.NewValueStore(cfg.ReserveFloor)
	deriver := custody.NewAddressDeriver(program)
	engine := custody.NewEngine(deriver, records, values, custody.SystemClock{}, audit, log)

	unit := domain.ValueUnit{
		Ticker:   cfg.Unit.Ticker,
		Name:     cfg.Unit.Name,
		Decimals: cfg.Unit.Decimals,
	}
	srv := server.New(engine, unit, log)

	log.Info("custodyd listening", "addr", cfg.Listen, "unit", unit.Ticker, "program", program)
	if err := http.ListenAndServe(cfg.Listen, srv.Router()); err != nil {
		log.Error("http server", "error", err)
		os.Exit(1)
	}
}
