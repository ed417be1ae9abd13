package dues

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/azzil/mensalidades/be/pkg/common/debounce"
	"github.com/azzil/mensalidades/be/pkg/common/logger"
	"github.com/azzil/mensalidades/be/pkg/repositories/snapshot"
)

const (
	DefaultSaveDelay    = 300 * time.Millisecond
	DefaultSaveTimeout  = 30 * time.Second
	DefaultProbeTimeout = 3 * time.Second
)

type PersisterOptions struct {
	Delay        time.Duration
	SaveTimeout  time.Duration
	ProbeTimeout time.Duration
	Metrics      *Metrics
}

// SaveStatus is the result of the most recent save attempt.
type SaveStatus struct {
	At      time.Time             `json:"at"`
	Outcome *snapshot.SaveOutcome `json:"outcome,omitempty"`
	Error   string                `json:"error,omitempty"`
	Pending bool                  `json:"pending"`
}

// Persister writes whole snapshots to the local cache and then to the primary
// source. A failed primary write degrades to a local-only save.
type Persister struct {
	primary snapshot.Source
	cache   snapshot.Source
	opts    PersisterOptions
	metrics *Metrics
	log     *logger.Logger
	deb     *debounce.Debouncer

	saveMu sync.Mutex
	mu     sync.Mutex
	snap   func() snapshot.Snapshot
	last   SaveStatus
}

// NewPersister builds a persister. cache may be nil.
func NewPersister(primary, cache snapshot.Source, opts PersisterOptions) *Persister {
	if opts.Delay <= 0 {
		opts.Delay = DefaultSaveDelay
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = DefaultSaveTimeout
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	p := &Persister{
		primary: primary,
		cache:   cache,
		opts:    opts,
		metrics: opts.Metrics,
		log:     logger.Named("persist"),
	}
	p.deb = debounce.New(opts.Delay, p.saveDebounced)
	return p
}

// Bind sets the snapshot supplier, normally Ledger.Snapshot.
func (p *Persister) Bind(snap func() snapshot.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = snap
}

// ScheduleSave saves after the quiet period, restarting any pending timer.
func (p *Persister) ScheduleSave() { p.deb.Trigger() }

// SaveNow drops any pending save and persists immediately.
func (p *Persister) SaveNow(ctx context.Context) (snapshot.SaveOutcome, error) {
	p.deb.Cancel()
	return p.save(ctx)
}

// Close writes a pending save, if any, and stops the debouncer.
func (p *Persister) Close(ctx context.Context) error {
	pending := p.deb.Cancel()
	p.deb.Stop()
	if !pending {
		return nil
	}
	_, err := p.save(ctx)
	return err
}

// Status reports the last save attempt.
func (p *Persister) Status() SaveStatus {
	p.mu.Lock()
	st := p.last
	p.mu.Unlock()
	st.Pending = p.deb.Pending()
	return st
}

func (p *Persister) saveDebounced() {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.SaveTimeout)
	defer cancel()
	if _, err := p.save(ctx); err != nil {
		p.log.Error("debounced save: %v", err)
	}
}

func (p *Persister) save(ctx context.Context) (snapshot.SaveOutcome, error) {
	p.mu.Lock()
	snap := p.snap
	p.mu.Unlock()
	if snap == nil {
		return snapshot.SaveOutcome{}, errors.New("persister has no snapshot supplier")
	}

	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	start := time.Now()
	s := snap()

	var cacheErr error
	if p.cache != nil {
		if _, cacheErr = p.cache.Save(ctx, s); cacheErr != nil {
			p.log.Warn("%s save failed: %v", p.cache.Name(), cacheErr)
		}
	}
	out, err := p.primary.Save(ctx, s)
	p.metrics.saveLatency.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		if cacheErr != nil {
			out.Warning = fmt.Sprintf("local cache not updated: %v", cacheErr)
		}
		p.metrics.savesTotal.WithLabelValues("ok").Inc()
		p.log.Debug("saved %d members, %d payments to %s", len(s.Members), len(s.Payments), p.primary.Name())
	case p.cache != nil && cacheErr == nil:
		out = snapshot.SaveOutcome{
			LocalOnly:   true,
			ClosedCount: s.ClosedCount(),
			Warning:     fmt.Sprintf("saved locally only, %s sync pending: %v", p.primary.Name(), err),
		}
		err = nil
		p.metrics.savesTotal.WithLabelValues("local_only").Inc()
		p.log.Warn("%s", out.Warning)
	default:
		p.metrics.savesTotal.WithLabelValues("failed").Inc()
		err = fmt.Errorf("save snapshot: %w", err)
	}

	p.mu.Lock()
	p.last = SaveStatus{At: time.Now()}
	if err != nil {
		p.last.Error = err.Error()
	} else {
		o := out
		p.last.Outcome = &o
	}
	p.mu.Unlock()
	return out, err
}

// Load picks the startup snapshot: the primary when its probe succeeds, else
// the local cache, else an empty store. Failures become report warnings.
func (p *Persister) Load(ctx context.Context) (snapshot.Snapshot, snapshot.LoadReport, error) {
	var warnings []string

	primaryUp := true
	if pr, ok := p.primary.(snapshot.Prober); ok {
		pctx, cancel := context.WithTimeout(ctx, p.opts.ProbeTimeout)
		err := pr.Probe(pctx)
		cancel()
		if err != nil {
			primaryUp = false
			warnings = append(warnings, fmt.Sprintf("%s unavailable: %v", p.primary.Name(), err))
		}
	}

	if primaryUp {
		s, rep, err := p.loadFrom(ctx, p.primary)
		if err == nil {
			rep.Warnings = append(warnings, rep.Warnings...)
			if p.cache != nil {
				if _, err := p.cache.Save(ctx, s); err != nil {
					p.log.Warn("seed %s: %v", p.cache.Name(), err)
				}
			}
			return s, rep, nil
		}
		warnings = append(warnings, fmt.Sprintf("%s: %v", p.primary.Name(), err))
	}
	if err := ctx.Err(); err != nil {
		return snapshot.Snapshot{}, snapshot.LoadReport{}, err
	}

	if p.cache != nil {
		s, rep, err := p.loadFrom(ctx, p.cache)
		if err == nil {
			rep.Warnings = append(warnings, rep.Warnings...)
			return s, rep, nil
		}
		warnings = append(warnings, fmt.Sprintf("%s: %v", p.cache.Name(), err))
	}

	p.metrics.snapshotLoadsByOK.WithLabelValues("empty", "ok").Inc()
	return snapshot.Snapshot{}, snapshot.LoadReport{Source: "empty", Warnings: warnings}, nil
}

func (p *Persister) loadFrom(ctx context.Context, src snapshot.Source) (snapshot.Snapshot, snapshot.LoadReport, error) {
	s, rep, err := src.Load(ctx)
	if err != nil {
		result := "error"
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			result = "missing"
		}
		p.metrics.snapshotLoadsByOK.WithLabelValues(src.Name(), result).Inc()
		return snapshot.Snapshot{}, snapshot.LoadReport{}, err
	}
	p.metrics.snapshotLoadsByOK.WithLabelValues(src.Name(), "ok").Inc()
	rep.Source = src.Name()
	p.log.Info("loaded %d members, %d payments from %s", len(s.Members), len(s.Payments), src.Name())
	return s, rep, nil
}
