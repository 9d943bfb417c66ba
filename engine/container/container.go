// Package container builds the dependency graph bottom-up at startup:
// broker, persistence, factory+registry, tracker and broadcaster, then the
// workers — an explicitly constructed struct instead of the teacher's
// lazy-import pattern.
package container

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	_ "github.com/lib/pq"

	"github.com/recipeforge/ingest-pipeline/engine/action"
	"github.com/recipeforge/ingest-pipeline/engine/category"
	"github.com/recipeforge/ingest-pipeline/engine/job"
	"github.com/recipeforge/ingest-pipeline/engine/parsedfile"
	"github.com/recipeforge/ingest-pipeline/engine/persist"
	"github.com/recipeforge/ingest-pipeline/engine/queue"
	"github.com/recipeforge/ingest-pipeline/engine/status"
	"github.com/recipeforge/ingest-pipeline/engine/tracker"
	"github.com/recipeforge/ingest-pipeline/engine/worker"
	"github.com/recipeforge/ingest-pipeline/pkg/config"
)

// Container holds every singleton the pipeline core depends on: the
// queues, the persistence store, the action factory, the completion
// tracker, the status broadcaster, and the seven built workers. Tests
// substitute fakes through BuildWith instead of calling Build.
type Container struct {
	Config    config.Config
	Log       *slog.Logger
	Queue     queue.Queue
	Store     persist.Store
	Factory   *action.Factory
	Tracker   *tracker.Tracker
	Broadcast *status.Broadcaster
	Workers   *worker.Workers

	natsConn *nats.Conn
	sqlDB    *sql.DB
}

// ParseHTMLFunc is the out-of-scope HTML parser contract (spec §1): a pure
// function from raw export content to structured recipe data. The
// container takes it as a constructor argument rather than importing a
// concrete parser, since the parser itself is an external collaborator.
type ParseHTMLFunc func(content string) (*parsedfile.File, error)

// Build wires the full dependency graph: broker, then persistence, then
// the factory+registry, then the tracker and broadcaster, then the
// workers. The broadcaster is built before the workers, not after them,
// because the workers receive it through action.Deps. natsURL is the
// broker connection string; parseHTML is the caller's HTML-parse
// collaborator.
func Build(ctx context.Context, cfg config.Config, natsURL string, parseHTML ParseHTMLFunc, log *slog.Logger) (*Container, error) {
	if log == nil {
		log = slog.Default()
	}

	// --- broker ---
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("container: connect nats: %w", err)
	}
	q := queue.NewNATSQueue(nc, log)

	// --- persistence ---
	sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("container: open database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		nc.Close()
		sqlDB.Close()
		return nil, fmt.Errorf("container: ping database: %w", err)
	}
	store := persist.NewPostgresStore(sqlDB)

	c, err := build(q, store, parseHTML, log)
	if err != nil {
		nc.Close()
		sqlDB.Close()
		return nil, err
	}
	c.Config = cfg
	c.natsConn = nc
	c.sqlDB = sqlDB
	return c, nil
}

// BuildWith wires the graph over caller-supplied broker and store
// implementations — the seam tests use to avoid a real NATS/Postgres
// connection.
func BuildWith(q queue.Queue, store persist.Store, parseHTML ParseHTMLFunc, log *slog.Logger) (*Container, error) {
	return build(q, store, parseHTML, log)
}

func build(q queue.Queue, store persist.Store, parseHTML ParseHTMLFunc, log *slog.Logger) (*Container, error) {
	if log == nil {
		log = slog.Default()
	}

	// --- factory + registry (write-once, then read-only per spec §5) ---
	factory := action.NewFactory()
	if err := action.RegisterAll(factory); err != nil {
		return nil, fmt.Errorf("container: register actions: %w", err)
	}

	trk := tracker.New()
	broadcast := status.New(log)

	queues := make(map[job.Name]queue.Queue, len(job.AllQueues))
	for _, name := range job.AllQueues {
		queues[name] = q
	}

	deps := action.Deps{
		Store:      store,
		Tracker:    trk,
		Broadcast:  broadcast,
		Categories: category.Default(),
		Log:        log,
		Queues:     queues,
		ParseHTML: func(content string) (*parsedfile.File, error) {
			return parseHTML(content)
		},
	}

	// --- workers ---
	workers := worker.BuildAll(factory, deps)

	return &Container{
		Log:       log,
		Queue:     q,
		Store:     store,
		Factory:   factory,
		Tracker:   trk,
		Broadcast: broadcast,
		Workers:   workers,
	}, nil
}

// StartWorkers subscribes every worker to its queue.
func (c *Container) StartWorkers() ([]queue.Subscription, error) {
	return c.Workers.StartAll(c.Queue)
}

// NATSConn exposes the broker connection Build opened, for callers that
// need to publish/subscribe auxiliary subjects (e.g. a worker heartbeat)
// outside the job queues themselves. Returns nil for a BuildWith-
// constructed container.
func (c *Container) NATSConn() *nats.Conn {
	return c.natsConn
}

// Close tears down any connections Build opened. BuildWith-constructed
// containers own nothing to close.
func (c *Container) Close() error {
	var firstErr error
	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			firstErr = err
		}
	}
	if c.natsConn != nil {
		c.natsConn.Close()
	}
	return firstErr
}
