// Package app assembles the ledger and its storage from a Config.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/azzil/mensalidades/be/internal/config"
	"github.com/azzil/mensalidades/be/internal/dues"
	"github.com/azzil/mensalidades/be/internal/repositories/attachments/disk"
	evsqlite "github.com/azzil/mensalidades/be/internal/repositories/events/sqlite"
	mmem "github.com/azzil/mensalidades/be/internal/repositories/members/memory"
	pmem "github.com/azzil/mensalidades/be/internal/repositories/payments/memory"
	"github.com/azzil/mensalidades/be/internal/repositories/snapshot/file"
	"github.com/azzil/mensalidades/be/internal/repositories/snapshot/remote"
	snapsqlite "github.com/azzil/mensalidades/be/internal/repositories/snapshot/sqlite"
	"github.com/azzil/mensalidades/be/pkg/common/logger"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
	"github.com/azzil/mensalidades/be/pkg/repositories/snapshot"
)

// App holds everything a process needs to serve or edit the ledger.
type App struct {
	Config     *config.Config
	Ledger     *dues.Ledger
	Persister  *dues.Persister
	Registry   *prometheus.Registry
	Files      *disk.Store
	Events     *evsqlite.SQLiteRepo
	Cache      *snapsqlite.SQLiteRepo
	LoadReport snapshot.LoadReport
}

// Build opens the repositories, loads the newest snapshot and binds the
// persister. Close must be called to flush pending saves.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Named("app")
	epoch, err := cfg.EpochPeriod()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var primary snapshot.Source
	if cfg.RemoteURL != "" {
		primary, err = remote.NewSource(cfg.RemoteURL, cfg.RemoteTimeout, cfg.ProbeTimeout)
	} else {
		primary, err = file.NewSource(cfg.SnapshotPath)
	}
	if err != nil {
		return nil, fmt.Errorf("init primary snapshot source: %w", err)
	}

	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	if a.Cache, err = snapsqlite.NewSQLiteRepo(cfg.CachePath); err != nil {
		return nil, fmt.Errorf("init cache repo: %w", err)
	}
	if a.Events, err = evsqlite.NewSQLiteRepo(cfg.EventsPath); err != nil {
		a.Cache.Disconnect()
		return nil, fmt.Errorf("init events repo: %w", err)
	}
	if a.Files, err = disk.NewStore(cfg.UploadDir, cfg.MaxUploadBytes); err != nil {
		a.disconnect()
		return nil, fmt.Errorf("init attachment store: %w", err)
	}

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := dues.NewMetrics(a.Registry)

	var inference payments.AmountInference = payments.NoInference{}
	if cfg.InferAmounts {
		inference = payments.SamePeriodInference{}
	}
	a.Ledger = dues.NewLedger(mmem.NewDirectory(), pmem.NewStore(), dues.Options{
		Epoch:     epoch,
		Location:  loc,
		Inference: inference,
		Metrics:   metrics,
		Events:    a.Events,
		Reminder: dues.ReminderTemplate{
			Header:    cfg.Reminder.Header,
			Greeting:  cfg.Reminder.Greeting,
			Signature: cfg.Reminder.Signature,
		},
	})
	a.Persister = dues.NewPersister(primary, a.Cache, dues.PersisterOptions{
		Delay:        cfg.SaveDelay,
		SaveTimeout:  cfg.RemoteTimeout,
		ProbeTimeout: cfg.ProbeTimeout,
		Metrics:      metrics,
	})

	loadCtx, cancel := context.WithTimeout(ctx, cfg.RemoteTimeout+cfg.ProbeTimeout)
	snap, rep, err := a.Persister.Load(loadCtx)
	cancel()
	if err == nil {
		err = a.Ledger.Replace(snap)
	}
	if err != nil {
		a.disconnect()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	for _, w := range rep.Warnings {
		log.Warn("load: %s", w)
	}
	log.Info("loaded %d members and %d payments from %s", len(snap.Members), len(snap.Payments), rep.Source)
	a.LoadReport = rep

	a.Persister.Bind(a.Ledger.Snapshot)
	a.Ledger.AttachSaver(a.Persister)
	return a, nil
}

// Close flushes a pending save and releases the databases.
func (a *App) Close(ctx context.Context) error {
	err := a.Persister.Close(ctx)
	a.disconnect()
	return err
}

func (a *App) disconnect() {
	if a.Cache != nil {
		a.Cache.Disconnect()
	}
	if a.Events != nil {
		a.Events.Disconnect()
	}
}
