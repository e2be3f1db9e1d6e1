// Command registryd runs the Registry Update Engine as a standalone
// daemon: it wires the MongoDB store, the GitLab repository adapter,
// the info cache and the update queue together, then sweeps the catalog
// on a timer until asked to stop.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dalee/vcsreg/pkg/cache"
	"github.com/dalee/vcsreg/pkg/queue"
	"github.com/dalee/vcsreg/pkg/reconciler"
	"github.com/dalee/vcsreg/pkg/registry"
	"github.com/dalee/vcsreg/pkg/repository/gitlab"
	mongostore "github.com/dalee/vcsreg/pkg/store/mongo"
)

var (
	mongoURI      string
	mongoDatabase string
	sweepInterval time.Duration
	logLevel      string
)

func init() {
	mongoURI = envDefault("REGISTRYD_MONGO_URI", "mongodb://localhost:27017")
	mongoDatabase = envDefault("REGISTRYD_MONGO_DATABASE", "vcsreg")
	logLevel = envDefault("REGISTRYD_LOG_LEVEL", "info")

	parsed, err := time.ParseDuration(envDefault("REGISTRYD_SWEEP_INTERVAL", "30m"))
	if err != nil {
		parsed = 30 * time.Minute
	}
	sweepInterval = parsed
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if level, err := log.ParseLevel(logLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		logger.Fatal("connecting to mongo", "err", err)
	}
	defer client.Disconnect(context.Background())

	db := mongostore.New(client.Database(mongoDatabase))
	if err := db.EnsureIndexes(ctx); err != nil {
		logger.Fatal("ensuring indexes", "err", err)
	}

	resolver, err := gitlab.NewResolver()
	if err != nil {
		logger.Fatal("constructing gitlab resolver", "err", err)
	}

	c := cache.New(db, resolver)
	rec := reconciler.New(db, resolver, c, logger)
	q := queue.New(db, rec, logger)
	reg := registry.New(db, resolver, c, q, logger)

	logger.Info("registryd starting", "sweepInterval", sweepInterval, "mongoDatabase", mongoDatabase)

	sweep(ctx, reg, logger)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			sweep(ctx, reg, logger)
		case <-sigc:
			logger.Info("registryd shutting down")
			return
		}
	}
}

func sweep(ctx context.Context, reg *registry.Registry, logger *log.Logger) {
	if err := reg.CheckForNewVersions(ctx); err != nil {
		logger.Warn("sweep failed", "err", err)
	}
}
