package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"taxregistry/internal/taxpayer/models"
)

// InMemory keeps taxpayers in a map guarded by an RWMutex. Every record
// handed out is a deep copy, so readers never see a half-applied write.
type InMemory struct {
	mu        sync.RWMutex
	taxpayers map[models.TID]*models.TaxPayer
	seq       Sequence
	capacity  int
}

type Option func(*InMemory)

// WithSequence replaces the process-local counter.
func WithSequence(seq Sequence) Option {
	return func(s *InMemory) {
		if seq != nil {
			s.seq = seq
		}
	}
}

// WithCapacity caps the number of live taxpayers. Creates beyond the cap
// fail with ErrUnavailable. Zero or less means unbounded.
func WithCapacity(n int) Option {
	return func(s *InMemory) {
		s.capacity = n
	}
}

func NewInMemory(opts ...Option) *InMemory {
	s := &InMemory{
		taxpayers: make(map[models.TID]*models.TaxPayer),
		seq:       NewMemorySequence(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates the next tid and inserts the record under one write lock.
func (s *InMemory) Create(ctx context.Context, p models.Profile) (*models.TaxPayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity > 0 && len(s.taxpayers) >= s.capacity {
		return nil, fmt.Errorf("registry holds %d taxpayers: %w", s.capacity, ErrUnavailable)
	}
	tid, err := s.seq.Next(ctx)
	if err != nil {
		return nil, err
	}
	if _, taken := s.taxpayers[tid]; taken {
		// Only reachable with a misbehaving Sequence.
		return nil, fmt.Errorf("tid %s already allocated: %w", tid, ErrUnavailable)
	}

	tp := models.NewTaxPayer(tid, p)
	s.taxpayers[tid] = tp
	return tp.Clone(), nil
}

func (s *InMemory) UpdateProfile(_ context.Context, tid models.TID, p models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tp, ok := s.taxpayers[tid]
	if !ok {
		return ErrNotFound
	}
	tp.ApplyProfile(p)
	return nil
}

func (s *InMemory) Delete(_ context.Context, tid models.TID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.taxpayers[tid]; !ok {
		return ErrNotFound
	}
	delete(s.taxpayers, tid)
	return nil
}

func (s *InMemory) AppendCapitalGain(_ context.Context, tid models.TID, g models.CapitalGain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tp, ok := s.taxpayers[tid]
	if !ok {
		return ErrNotFound
	}
	tp.AppendCapitalGain(g)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tid models.TID) (*models.TaxPayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tp, ok := s.taxpayers[tid]
	if !ok {
		return nil, ErrNotFound
	}
	return tp.Clone(), nil
}

// ListAll returns copies of every live taxpayer in ascending tid order,
// which is also creation order.
func (s *InMemory) ListAll(_ context.Context) ([]*models.TaxPayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tids := slices.Sorted(maps.Keys(s.taxpayers))
	out := make([]*models.TaxPayer, 0, len(tids))
	for _, tid := range tids {
		out = append(out, s.taxpayers[tid].Clone())
	}
	return out, nil
}
