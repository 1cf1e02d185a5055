package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/decred/slog"

	"dualvote-backend/api"
	"dualvote-backend/encryption"
	"dualvote-backend/registry"
	"dualvote-backend/service"
	"dualvote-backend/storage"
)

type Config struct {
	StorageDir string
	Host       string
	Port       int
	QueueSize  int
	Workers    int
	LogLevel   string
}

var log slog.Logger

func main() {
	config := parseFlags()

	backend := slog.NewBackend(os.Stdout)
	level, _ := slog.LevelFromString(config.LogLevel)
	log = newLogger(backend, "MAIN", level)
	api.UseLogger(newLogger(backend, "API", level))
	service.UseLogger(newLogger(backend, "SRVC", level))
	storage.UseLogger(newLogger(backend, "STOR", level))
	registry.UseLogger(newLogger(backend, "RGST", level))

	absPath, err := filepath.Abs(config.StorageDir)
	if err != nil {
		log.Errorf("Failed to resolve storage directory: %v", err)
		os.Exit(1)
	}

	server, queue, err := initialize(absPath, config)
	if err != nil {
		log.Errorf("Failed to initialize services: %v", err)
		os.Exit(1)
	}

	queue.Start()
	defer queue.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	serverChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
		log.Infof("Starting server on %s", addr)
		serverChan <- http.ListenAndServe(addr, server.Router())
	}()

	select {
	case err := <-serverChan:
		log.Errorf("Server error: %v", err)
		os.Exit(1)
	case sig := <-sigChan:
		log.Infof("Received signal: %v", sig)
		log.Infof("Server shutdown completed")
	}
}

func initialize(storageDir string, config *Config) (*api.Server, *service.CastQueue, error) {
	store, err := storage.NewJSONStore(storageDir)
	if err != nil {
		return nil, nil, err
	}

	cryptoService := encryption.NewCryptoService()
	keystore, err := encryption.NewKeystore(filepath.Join(storageDir, "keys"), cryptoService)
	if err != nil {
		return nil, nil, err
	}

	voterRoll, err := registry.NewFileRegistry(filepath.Join(storageDir, "voter_roll.json"))
	if err != nil {
		return nil, nil, err
	}

	metrics := service.NewMetricsCollector()
	elections := service.NewElectionService(store, keystore)
	guard := service.NewDuplicateCastGuard(store)
	receipts := service.NewReceiptService(store, cryptoService)
	casting := service.NewCastingService(store, cryptoService, voterRoll, elections, guard, receipts, metrics)
	tally := service.NewTallyService(store, cryptoService, keystore, elections, metrics)
	queue := service.NewCastQueue(casting, config.QueueSize, config.Workers)

	server := api.NewServer(api.Config{
		Elections: elections,
		Tally:     tally,
		Receipts:  receipts,
		Queue:     queue,
		Metrics:   metrics,
	})
	return server, queue, nil
}

func newLogger(backend *slog.Backend, tag string, level slog.Level) slog.Logger {
	logger := backend.Logger(tag)
	logger.SetLevel(level)
	return logger
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.StorageDir, "storage", "data", "Directory for ballot and election storage")
	flag.StringVar(&config.Host, "host", "0.0.0.0", "Server listen host")
	flag.IntVar(&config.Port, "port", 8080, "Server port")
	flag.IntVar(&config.QueueSize, "queue", 256, "Cast queue capacity")
	flag.IntVar(&config.Workers, "workers", 8, "Cast worker count")
	flag.StringVar(&config.LogLevel, "loglevel", "info", "Log level (trace, debug, info, warn, error, critical)")

	flag.Parse()
	return config
}
