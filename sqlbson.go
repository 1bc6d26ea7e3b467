package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maxpert/sqlbson/admin"
	"github.com/maxpert/sqlbson/cfg"
	"github.com/maxpert/sqlbson/db"
	"github.com/maxpert/sqlbson/storage"
	"github.com/maxpert/sqlbson/telemetry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	flag.Parse()

	// Load configuration
	err := cfg.Load(*cfg.ConfigPathFlag)
	if err != nil {
		panic(err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	// Setup logging
	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stdout
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	log.Info().Msg("sqlbson - BSON documents in SQLite")
	log.Debug().Msg("Initializing telemetry")
	telemetry.InitializeTelemetry()

	// Out-of-line store
	store, err := storage.OpenPebbleStore(cfg.GetExternalStorePath(), storage.DefaultPebbleStoreOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open external store")
		return
	}
	defer store.Close()

	toaster, err := storage.NewToaster(store, storage.DefaultToasterOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create toaster")
		return
	}
	defer toaster.Close()

	codec := db.NewCodec(toaster)
	if err := db.RegisterDriver(cfg.Config.SQLite.DriverName, codec); err != nil {
		log.Fatal().Err(err).Msg("Failed to register SQLite driver")
		return
	}

	conn, err := sql.Open(cfg.Config.SQLite.DriverName, cfg.GetSQLitePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
		return
	}
	defer conn.Close()

	if err := selfCheck(conn); err != nil {
		log.Fatal().Err(err).Msg("Document functions self-check failed")
		return
	}

	collector := telemetry.NewMetricsCollector(toaster, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	var server *http.Server
	if cfg.Config.Admin.Enabled {
		server, err = startAdminServer(conn, codec, toaster)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start admin server")
			return
		}
	}

	log.Info().
		Str("db", cfg.GetSQLitePath()).
		Str("external_store", store.Path()).
		Str("data_dir", cfg.Config.DataDir).
		Msg("sqlbson is operational")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Admin server shutdown failed")
		}
		cancel()
	}
}

// selfCheck round-trips the sample document through the registered functions
func selfCheck(conn *sql.DB) error {
	var name, repr string
	err := conn.QueryRow("SELECT bson_get(bson_document(), 'name'), bson_repr(bson_document())").Scan(&name, &repr)
	if err != nil {
		return err
	}
	if name != "abc" {
		return fmt.Errorf("sample document returned name %q", name)
	}
	log.Debug().Str("repr", repr).Msg("Document functions ready")
	return nil
}

func startAdminServer(conn *sql.DB, codec *db.Codec, toaster *storage.Toaster) (*http.Server, error) {
	filter, err := admin.NewTableFilter(cfg.Config.Admin.AllowedTables)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	admin.RegisterRoutes(mux, admin.NewAdminHandlers(conn, codec, filter, toaster))

	addr := fmt.Sprintf("%s:%d", cfg.Config.Admin.BindAddress, cfg.Config.Admin.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Admin server failed")
		}
	}()

	log.Info().Str("addr", addr).Msg("Admin server listening")
	return server, nil
}
