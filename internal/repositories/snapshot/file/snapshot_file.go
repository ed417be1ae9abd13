package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	srepo "github.com/azzil/mensalidades/be/pkg/repositories/snapshot"
)

// Source keeps the snapshot in a single JSON file. Saves write a temp file in
// the same directory and rename it over the target.
type Source struct {
	mu   sync.Mutex
	path string
}

func NewSource(path string) (*Source, error) {
	if path == "" {
		return nil, errors.New("snapshot file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Source{path: path}, nil
}

// Ensure interface compliance
var (
	_ srepo.Source = (*Source)(nil)
	_ srepo.Prober = (*Source)(nil)
)

func (s *Source) Name() string { return "file" }

func (s *Source) Path() string { return s.path }

// Probe succeeds when the directory holding the file is writable.
func (s *Source) Probe(ctx context.Context) error {
	st, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(s.path))
	}
	return nil
}

func (s *Source) Load(ctx context.Context) (srepo.Snapshot, srepo.LoadReport, error) {
	s.mu.Lock()
	b, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return srepo.Snapshot{}, srepo.LoadReport{Source: s.Name()}, fmt.Errorf("%w: %s does not exist", srepo.ErrNoSnapshot, s.path)
		}
		return srepo.Snapshot{}, srepo.LoadReport{Source: s.Name()}, err
	}
	snap, rep, err := srepo.Decode(bytes.NewReader(b))
	rep.Source = s.Name()
	return snap, rep, err
}

func (s *Source) Save(ctx context.Context, snap srepo.Snapshot) (srepo.SaveOutcome, error) {
	b, err := srepo.Marshal(snap)
	if err != nil {
		return srepo.SaveOutcome{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(s.path, b); err != nil {
		return srepo.SaveOutcome{}, err
	}
	return srepo.SaveOutcome{Accepted: true, ClosedCount: snap.ClosedCount()}, nil
}

func writeAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
