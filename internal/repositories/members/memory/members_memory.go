package memory

import (
	"fmt"
	"sync"

	mrepo "github.com/azzil/mensalidades/be/pkg/repositories/members"
)

// Directory keeps members in insertion order with an id index.
type Directory struct {
	mu    sync.RWMutex
	items []mrepo.Member
	index map[mrepo.MemberID]int
}

func NewDirectory() *Directory {
	return &Directory{index: map[mrepo.MemberID]int{}}
}

// Ensure interface compliance
var _ mrepo.Directory = (*Directory)(nil)

func (d *Directory) Get(id mrepo.MemberID) (mrepo.Member, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[id]
	if !ok {
		return mrepo.Member{}, false
	}
	return d.items[i], true
}

// FindByTaxID compares digits only. The first match wins.
func (d *Directory) FindByTaxID(taxID string) (mrepo.Member, bool) {
	want := mrepo.NormalizeTaxID(taxID)
	if want == "" {
		return mrepo.Member{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, m := range d.items {
		if mrepo.NormalizeTaxID(m.TaxID) == want {
			return m, true
		}
	}
	return mrepo.Member{}, false
}

func (d *Directory) List() []mrepo.Member {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]mrepo.Member, len(d.items))
	copy(out, d.items)
	return out
}

func (d *Directory) Add(m mrepo.Member) error {
	if m.ID == "" {
		return fmt.Errorf("add member: empty id")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.index[m.ID]; ok {
		return fmt.Errorf("add member %s: %w", m.ID, mrepo.ErrDuplicate)
	}
	d.index[m.ID] = len(d.items)
	d.items = append(d.items, m)
	return nil
}

// Update applies mutate to a copy and swaps it in. The id cannot change.
func (d *Directory) Update(id mrepo.MemberID, mutate func(*mrepo.Member)) (mrepo.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.index[id]
	if !ok {
		return mrepo.Member{}, fmt.Errorf("update member %s: %w", id, mrepo.ErrNotFound)
	}
	next := d.items[i]
	mutate(&next)
	next.ID = id
	d.items[i] = next
	return next, nil
}

func (d *Directory) Delete(id mrepo.MemberID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.index[id]
	if !ok {
		return false
	}
	d.items = append(d.items[:i], d.items[i+1:]...)
	d.reindex()
	return true
}

// Replace swaps the whole collection. Duplicate ids are rejected and leave the
// directory unchanged.
func (d *Directory) Replace(ms []mrepo.Member) error {
	index := make(map[mrepo.MemberID]int, len(ms))
	for i, m := range ms {
		if _, ok := index[m.ID]; ok {
			return fmt.Errorf("replace members %s: %w", m.ID, mrepo.ErrDuplicate)
		}
		index[m.ID] = i
	}
	items := make([]mrepo.Member, len(ms))
	copy(items, ms)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = items
	d.index = index
	return nil
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.items)
}

func (d *Directory) reindex() {
	d.index = make(map[mrepo.MemberID]int, len(d.items))
	for i, m := range d.items {
		d.index[m.ID] = i
	}
}
