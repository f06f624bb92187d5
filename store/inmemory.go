// Package store provides RunStore and BriefCache implementations backed by
// memory, PostgreSQL, MongoDB, and Redis.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/geetanjaliapp/geetanjali-sub001/errors"

	"github.com/geetanjaliapp/geetanjali-sub001/consult"
)

// InMemoryStore implements consult.RunStore in process memory. Used in tests
// and single-process deployments.
type InMemoryStore struct {
	mu          sync.RWMutex
	runs        map[string]*consult.ConsultationRun
	passes      map[string]map[int]*consult.PassRecord // runID -> pass number
	comparisons map[string]*consult.ComparisonRecord
}

// NewInMemoryStore creates an empty in-memory run store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		runs:        make(map[string]*consult.ConsultationRun),
		passes:      make(map[string]map[int]*consult.PassRecord),
		comparisons: make(map[string]*consult.ComparisonRecord),
	}
}

// SaveRun inserts or updates a run.
func (s *InMemoryStore) SaveRun(_ context.Context, run *consult.ConsultationRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("save run: %w: run id is required", apperrors.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cloned := *run
	cloned.Passes = nil // passes are stored separately
	s.runs[run.ID] = &cloned
	return nil
}

// SavePass inserts or updates a pass record keyed by (RunID, Number).
func (s *InMemoryStore) SavePass(_ context.Context, pass *consult.PassRecord) error {
	if pass == nil || pass.RunID == "" {
		return fmt.Errorf("save pass: %w: run id is required", apperrors.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[pass.RunID]; !ok {
		return fmt.Errorf("save pass: run %s: %w", pass.RunID, apperrors.ErrNotFound)
	}
	byNumber, ok := s.passes[pass.RunID]
	if !ok {
		byNumber = make(map[int]*consult.PassRecord)
		s.passes[pass.RunID] = byNumber
	}
	cloned := *pass
	byNumber[int(pass.Number)] = &cloned
	return nil
}

// GetRun loads a run with its pass records ordered by pass number.
func (s *InMemoryStore) GetRun(_ context.Context, id string) (*consult.ConsultationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("get run %s: %w", id, apperrors.ErrNotFound)
	}
	cloned := *run
	if byNumber, ok := s.passes[id]; ok {
		numbers := make([]int, 0, len(byNumber))
		for n := range byNumber {
			numbers = append(numbers, n)
		}
		sort.Ints(numbers)
		for _, n := range numbers {
			record := *byNumber[n]
			cloned.Passes = append(cloned.Passes, &record)
		}
	}
	return &cloned, nil
}

// DeleteRun removes a run and cascades to its pass records.
func (s *InMemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("delete run %s: %w", id, apperrors.ErrNotFound)
	}
	delete(s.runs, id)
	delete(s.passes, id)
	return nil
}

// SaveComparison writes a comparison record.
func (s *InMemoryStore) SaveComparison(_ context.Context, rec *consult.ComparisonRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("save comparison: %w: record id is required", apperrors.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cloned := *rec
	s.comparisons[rec.ID] = &cloned
	return nil
}

// AnnotateComparison attaches review fields to an existing record.
func (s *InMemoryStore) AnnotateComparison(_ context.Context, id, reviewedBy, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.comparisons[id]
	if !ok {
		return fmt.Errorf("annotate comparison %s: %w", id, apperrors.ErrNotFound)
	}
	now := time.Now()
	rec.ReviewedBy = reviewedBy
	rec.ReviewNotes = notes
	rec.ReviewedAt = &now
	return nil
}

// GetComparison loads a comparison record.
func (s *InMemoryStore) GetComparison(_ context.Context, id string) (*consult.ComparisonRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.comparisons[id]
	if !ok {
		return nil, fmt.Errorf("get comparison %s: %w", id, apperrors.ErrNotFound)
	}
	cloned := *rec
	return &cloned, nil
}
