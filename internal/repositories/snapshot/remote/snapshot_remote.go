package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	srepo "github.com/azzil/mensalidades/be/pkg/repositories/snapshot"
)

const maxSnapshotBytes = 32 << 20

// entry is the last snapshot body seen, used to answer 304 responses.
type entry struct {
	body         []byte
	etag         string
	lastModified time.Time
}

// Source talks to another instance of the dues API that owns the snapshot.
type Source struct {
	mu           sync.Mutex
	baseURL      string
	client       *http.Client
	probeTimeout time.Duration
	last         *entry
}

func NewSource(baseURL string, timeout, probeTimeout time.Duration) (*Source, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("remote snapshot url is empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	return &Source{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: timeout},
		probeTimeout: probeTimeout,
	}, nil
}

// Ensure interface compliance
var (
	_ srepo.Source = (*Source)(nil)
	_ srepo.Prober = (*Source)(nil)
)

func (s *Source) Name() string { return "remote" }

// Probe checks /api/health within the probe timeout.
func (s *Source) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
	if resp.StatusCode != http.StatusOK {
		return errors.New("remote: health returned status " + strconv.Itoa(resp.StatusCode))
	}
	return nil
}

func (s *Source) Load(ctx context.Context) (srepo.Snapshot, srepo.LoadReport, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return srepo.Snapshot{}, srepo.LoadReport{Source: s.Name()}, err
	}
	snap, rep, err := srepo.Unmarshal(body)
	rep.Source = s.Name()
	return snap, rep, err
}

func (s *Source) fetch(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	e := s.last
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/file.json", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")
	// Conditional headers
	if e != nil {
		if e.etag != "" {
			req.Header.Set("If-None-Match", e.etag)
		}
		if !e.lastModified.IsZero() {
			req.Header.Set("If-Modified-Since", e.lastModified.UTC().Format(http.TimeFormat))
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if e == nil {
			return nil, errors.New("remote: 304 but no cached snapshot")
		}
		return e.body, nil
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
		if err != nil {
			return nil, err
		}
		next := &entry{body: body, etag: resp.Header.Get("ETag")}
		if lm := resp.Header.Get("Last-Modified"); lm != "" {
			if t, err := time.Parse(http.TimeFormat, lm); err == nil {
				next.lastModified = t
			}
		}
		s.mu.Lock()
		s.last = next
		s.mu.Unlock()
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: remote has no snapshot", srepo.ErrNoSnapshot)
	default:
		return nil, errors.New("remote: unexpected status " + strconv.Itoa(resp.StatusCode))
	}
}

// saveResponse is the body of PUT /api/save-file.json.
type saveResponse struct {
	Success      bool   `json:"success"`
	Error        string `json:"error"`
	Members      int    `json:"members"`
	Payments     int    `json:"payments"`
	PaidPayments int    `json:"paidPayments"`
	ClosedCount  *int   `json:"closedCount"`
}

func (s *Source) Save(ctx context.Context, snap srepo.Snapshot) (srepo.SaveOutcome, error) {
	b, err := srepo.Marshal(snap)
	if err != nil {
		return srepo.SaveOutcome{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+"/api/save-file.json", bytes.NewReader(b))
	if err != nil {
		return srepo.SaveOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return srepo.SaveOutcome{}, err
	}
	defer resp.Body.Close()

	var sr saveResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&sr)
	if resp.StatusCode != http.StatusOK || !sr.Success {
		msg := sr.Error
		if msg == "" {
			msg = "status " + strconv.Itoa(resp.StatusCode)
		}
		return srepo.SaveOutcome{}, errors.New("remote: save rejected: " + msg)
	}
	closed := snap.ClosedCount()
	if sr.ClosedCount != nil {
		closed = *sr.ClosedCount
	}
	// Our own write invalidates the conditional-GET state.
	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
	return srepo.SaveOutcome{Accepted: true, ClosedCount: closed}, nil
}
