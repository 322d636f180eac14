// Package app builds the service once at startup and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/raoulx24/snapkeeper/internal/config"
	"github.com/raoulx24/snapkeeper/internal/logging"
	"github.com/raoulx24/snapkeeper/internal/mailbox"
	"github.com/raoulx24/snapkeeper/internal/protocol"
	"github.com/raoulx24/snapkeeper/internal/server"
	"github.com/raoulx24/snapkeeper/internal/session"
	"github.com/raoulx24/snapkeeper/internal/sources"
	"github.com/raoulx24/snapkeeper/internal/store"
	"github.com/raoulx24/snapkeeper/internal/watcher"
	"github.com/raoulx24/snapkeeper/internal/worker"
)

// App holds every long-lived component.
type App struct {
	cfg *config.Config
	log logging.Logger

	store    *store.Store
	mb       *mailbox.Mailbox[worker.Job]
	worker   *worker.Worker
	watcher  *watcher.Watcher
	sessions *session.Registry
	handler  *protocol.Handler
	server   *server.Server
	sup      *suture.Supervisor

	ctx    context.Context
	cancel context.CancelFunc
}

// New wires the application from cfg. The initial scan of the backup
// directory happens here.
func New(cfg *config.Config, log logging.Logger) (*App, error) {
	a := &App{
		cfg: cfg,
		log: log.With("component", "app"),
		mb:  mailbox.New[worker.Job](),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	st, err := store.New(cfg.Storage.Root, cfg.BudgetBytes(), nil, log, nil)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.store = st

	opts := protocol.Options{
		Secret:      cfg.Protocol.Password,
		URLTemplate: cfg.Protocol.URLTemplate,
		Store:       st,
		Shutdown:    a.Shutdown,
		Log:         log,
	}
	if cfg.Sources.RegistrationDir != "" {
		opts.Registrations = sources.NewDirSource(cfg.Sources.RegistrationDir, log)
	}
	if cfg.Sources.CommitRepo != "" {
		opts.Commits = sources.NewGitSource(cfg.Sources.CommitRepo, log)
	}
	a.handler = protocol.NewHandler(opts)

	a.worker = worker.New(st, log, a.mb)
	a.watcher = watcher.New(cfg.Rescan, cfg.Storage.Root, log, a.mb)
	a.sessions = session.NewRegistry(cfg.Protocol.CommandsPerSecond, log)
	a.server = server.New(cfg.Server, a.sessions, a.handler, st, log)

	a.sup = suture.New("snapkeeper", suture.Spec{
		EventHook: a.supervisorEvent,
		Timeout:   supervisorTimeout(cfg),
	})
	a.sup.Add(a.worker)
	a.sup.Add(a.watcher)
	a.sup.Add(a.server)

	return a, nil
}

// Run serves until ctx ends or Shutdown is called, then drains.
func (a *App) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, a.cancel)
	defer stop()

	// retention for whatever the initial scan found
	a.mb.Put(worker.NewJob("startup"))

	n, bytes := a.store.Stats()
	a.log.Info("starting", "root", a.store.Root(), "snapshots", n, "bytes", bytes, "budget", a.store.Budget())

	err := a.sup.Serve(a.ctx)

	if unstopped, _ := a.sup.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			a.log.Warn("service failed to stop", "service", svc.Name)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("stopped")
	return nil
}

// Shutdown starts the graceful drain. It never blocks.
func (a *App) Shutdown() {
	a.log.Info("shutdown initiated")
	a.cancel()
}

// Reload applies the settings that can change while running: retention
// budget, rescan schedule, watcher timings and log level.
func (a *App) Reload(cfg *config.Config) {
	if cfg.Storage.Root != a.cfg.Storage.Root {
		a.log.Warn("storage root change requires restart", "current", a.cfg.Storage.Root)
	}
	if !sameServer(cfg.Server, a.cfg.Server) {
		a.log.Warn("server settings change requires restart")
	}
	if cfg.Protocol != a.cfg.Protocol {
		a.log.Warn("protocol settings change requires restart")
	}

	a.store.SetBudget(cfg.BudgetBytes())
	a.watcher.UpdateConfig(cfg.Rescan)
	logging.SetLevel(cfg.Logging.Level)

	a.cfg = cfg
	a.mb.Put(worker.NewJob("reload"))
	a.log.Info("config reloaded")
}

// supervisorGrace lets the server finish its own drain, bounded by
// ShutdownTimeout, before the supervisor gives up on it.
const supervisorGrace = time.Second

func supervisorTimeout(cfg *config.Config) time.Duration {
	return cfg.Server.ShutdownTimeout + supervisorGrace
}

// Addr is the bound server address, empty until listening.
func (a *App) Addr() string { return a.server.Addr() }

// Store exposes the snapshot store.
func (a *App) Store() *store.Store { return a.store }

func sameServer(x, y config.ServerConfig) bool {
	return x.Address == y.Address &&
		x.Path == y.Path &&
		x.ShutdownTimeout == y.ShutdownTimeout &&
		slices.Equal(x.CORSOrigins, y.CORSOrigins)
}

func (a *App) supervisorEvent(e suture.Event) {
	a.log.Warn("supervisor event", "type", int(e.Type()), "event", e.String())
}
