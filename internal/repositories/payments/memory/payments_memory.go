package memory

import (
	"fmt"
	"sync"

	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	prepo "github.com/azzil/mensalidades/be/pkg/repositories/payments"
)

// Store keeps payment records in insertion order with a key index.
type Store struct {
	mu    sync.RWMutex
	items []prepo.Payment
	index map[prepo.Key]int
}

func NewStore() *Store {
	return &Store{index: map[prepo.Key]int{}}
}

// Ensure interface compliance
var _ prepo.Store = (*Store)(nil)

func (s *Store) Find(key prepo.Key) (prepo.Payment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[key]
	if !ok {
		return prepo.Payment{}, false
	}
	return s.items[i], true
}

func (s *Store) Upsert(key prepo.Key, mutate prepo.Mutator) (prepo.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	var next prepo.Payment
	if ok {
		next = s.items[i]
	} else {
		next = prepo.New(key)
	}
	if mutate != nil {
		mutate(&next)
	}
	next.MemberID, next.Period = key.MemberID, key.Period
	if ok {
		s.items[i] = next
		return next, false
	}
	s.index[key] = len(s.items)
	s.items = append(s.items, next)
	return next, true
}

func (s *Store) Insert(p prepo.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := p.Key()
	if _, ok := s.index[key]; ok {
		return fmt.Errorf("insert %s/%s: %w", key.MemberID, key.Period, prepo.ErrDuplicate)
	}
	s.index[key] = len(s.items)
	s.items = append(s.items, p)
	return nil
}

func (s *Store) Rename(from, to prepo.Key) (prepo.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[from]
	if !ok {
		return prepo.Payment{}, fmt.Errorf("rename %s/%s: %w", from.MemberID, from.Period, prepo.ErrNotFound)
	}
	if from == to {
		return s.items[i], nil
	}
	if _, taken := s.index[to]; taken {
		return prepo.Payment{}, fmt.Errorf("rename to %s/%s: %w", to.MemberID, to.Period, prepo.ErrDuplicate)
	}
	p := s.items[i]
	p.MemberID, p.Period = to.MemberID, to.Period
	s.items[i] = p
	delete(s.index, from)
	s.index[to] = i
	return p, nil
}

func (s *Store) Delete(key prepo.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.reindex()
	return true
}

func (s *Store) DeleteAllForMember(id members.MemberID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	removed := 0
	for _, p := range s.items {
		if p.MemberID == id {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	s.items = kept
	s.reindex()
	return removed
}

func (s *Store) ForMember(id members.MemberID) []prepo.Payment {
	return s.filter(func(p prepo.Payment) bool { return p.MemberID == id })
}

func (s *Store) ForPeriod(per period.Period) []prepo.Payment {
	return s.filter(func(p prepo.Payment) bool { return p.Period == per })
}

func (s *Store) All() []prepo.Payment {
	return s.filter(func(prepo.Payment) bool { return true })
}

// Replace swaps the whole collection. A duplicate key leaves the store unchanged.
func (s *Store) Replace(ps []prepo.Payment) error {
	index := make(map[prepo.Key]int, len(ps))
	for i, p := range ps {
		if _, ok := index[p.Key()]; ok {
			return fmt.Errorf("replace %s/%s: %w", p.MemberID, p.Period, prepo.ErrDuplicate)
		}
		index[p.Key()] = i
	}
	items := make([]prepo.Payment, len(ps))
	copy(items, ps)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.index = index
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) filter(keep func(prepo.Payment) bool) []prepo.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []prepo.Payment{}
	for _, p := range s.items {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) reindex() {
	s.index = make(map[prepo.Key]int, len(s.items))
	for i, p := range s.items {
		s.index[p.Key()] = i
	}
}
