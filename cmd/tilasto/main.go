package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/config"
	"github.com/mahesh-hegde/tilasto/app/dashboard"
	"github.com/mahesh-hegde/tilasto/app/docstore"
	"github.com/mahesh-hegde/tilasto/app/municipality"
	"github.com/mahesh-hegde/tilasto/app/server"
	"github.com/mahesh-hegde/tilasto/app/statfin"
	"github.com/spf13/pflag"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "snapshot":
		runSnapshot()
	case "server":
		runServer()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: tilasto <command> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  snapshot      Fetch the municipality list and map boundaries into the data directory")
	fmt.Fprintln(os.Stderr, "  server        Start the tilasto server")
}

func loadConfig(dataDir string) *config.TilastoConfig {
	if dataDir == "" {
		slog.Error("--data-dir not provided, stopping")
		os.Exit(1)
	}
	conf, err := config.Load(dataDir)
	if err != nil {
		slog.Error("error while loading config", "err", err)
		os.Exit(1)
	}
	return conf
}

func entityVariable(q *config.QueryDefn) string {
	for _, d := range q.Dimensions {
		if d.Role == common.RoleEntity {
			return d.Code
		}
	}
	return ""
}

func snapshot(ctx context.Context, conf *config.TilastoConfig, store *municipality.SQLiteEntityStore) error {
	client := statfin.NewClient(conf)
	return municipality.Snapshot(ctx, client, conf.Population.URL, entityVariable(&conf.Population),
		conf.GeoJSONURL, store, store)
}

func openSQLiteStore(dataDir string) *municipality.SQLiteEntityStore {
	db, err := docstore.NewSQLiteDB(dataDir)
	if err != nil {
		slog.Error("error while opening DB", "err", err)
		os.Exit(1)
	}
	store := municipality.NewSQLiteEntityStore(db)
	if err := store.Init(); err != nil {
		slog.Error("error while initializing DB", "err", err)
		os.Exit(1)
	}
	return store
}

func runSnapshot() {
	flags := pflag.NewFlagSet("snapshot", pflag.ExitOnError)
	var dataDir string
	flags.StringVarP(&dataDir, "data-dir", "d", "", "data directory to read config.json from and write tilasto.db to")
	flags.Parse(os.Args[2:])

	conf := loadConfig(dataDir)
	store := openSQLiteStore(dataDir)
	if err := snapshot(context.Background(), conf, store); err != nil {
		slog.Error("snapshot failed", "err", err)
		os.Exit(1)
	}
}

func runServer() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	var serverConf config.ServerRuntimeConfig
	var dataDir string
	flags.StringVarP(&serverConf.Addr, "address", "a", "localhost", "Server address to bind")
	flags.IntVarP(&serverConf.Port, "port", "p", 8080, "Server port to bind")
	flags.StringVarP(&dataDir, "data-dir", "d", "", "data directory to read config.json and tilasto.db from")
	flags.StringVar(&serverConf.CertDir, "cert-dir", "", "directory with fullchain.pem and privkey.pem, or the ACME cache")
	flags.BoolVar(&serverConf.AcmeEnabled, "acme", false, "obtain certificates with ACME, requires --cert-dir")
	flags.BoolVar(&serverConf.BehindLoadBalancer, "behind-lb", false, "rate limit by X-Forwarded-For instead of remote address")
	flags.IntVar(&serverConf.RateLimit, "rate-limit", 0, "requests per second per client, 0 disables rate limiting")
	flags.IntVar(&serverConf.GzipLevel, "gzip", 0, "gzip compression level, 0 disables compression")

	flags.Parse(os.Args[2:])

	conf := loadConfig(dataDir)
	ctx := context.Background()

	sqliteStore := openSQLiteStore(dataDir)
	existing, err := sqliteStore.All(ctx)
	if err != nil {
		slog.Error("error while reading entities", "err", err)
		os.Exit(1)
	}
	if len(existing) == 0 {
		slog.Info("no snapshot found, fetching entities and boundaries")
		if err := snapshot(ctx, conf, sqliteStore); err != nil {
			slog.Error("initial snapshot failed", "err", err)
			os.Exit(1)
		}
	}

	var store municipality.EntityStore = sqliteStore
	if conf.SearchBackend == "bleve" {
		bleveStore := municipality.NewBleveEntityStore(path.Join(dataDir, "entities.bleve"))
		if err := bleveStore.Init(); err != nil {
			slog.Error("error while opening bleve index", "err", err)
			os.Exit(1)
		}
		defer bleveStore.Close()
		if err := municipality.Reindex(ctx, sqliteStore, bleveStore); err != nil {
			slog.Error("error while indexing entities", "err", err)
			os.Exit(1)
		}
		store = bleveStore
	}

	ms := municipality.NewMunicipalityService(store, sqliteStore)
	ds := dashboard.NewDashboardService(statfin.NewTemplates(conf), statfin.NewClient(conf), ms)

	// the API is up while the crime table loads; crime requests answer 503 until then
	go func() {
		loadCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		_ = ds.LoadCrime(loadCtx)
	}()

	slog.Info("starting server", "address", serverConf.Addr, "port", serverConf.Port, "search_backend", conf.SearchBackend)
	server.StartServer(server.NewTilastoController(ds, ms, conf), conf, serverConf)
}
