// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianHeuristics/pkg/logging"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/catalogue"
	"github.com/AleutianAI/AleutianHeuristics/services/heuristics/herrors"
)

var validate = validator.New()

// MemoryStore is the in-process knowledge base.
//
// # Thread Safety
//
// Safe for concurrent use. Retrieval takes a read lock and ranks a
// snapshot; feedback appends take the write lock. Entries are never
// modified or removed once added.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []KnowledgeEntry
	closed  bool
	now     func() time.Time
	logger  *logging.Logger
}

// StoreOption configures a MemoryStore.
type StoreOption func(*MemoryStore)

// WithLogger routes store logs through logger.
func WithLogger(logger *logging.Logger) StoreOption {
	return func(s *MemoryStore) {
		if logger != nil {
			s.logger = logger.With("component", "knowledge")
		}
	}
}

// NewMemoryStore creates a store holding entries, typically SeedEntries().
func NewMemoryStore(entries []KnowledgeEntry, opts ...StoreOption) *MemoryStore {
	cp := make([]KnowledgeEntry, len(entries))
	copy(cp, entries)
	s := &MemoryStore{
		entries: cp,
		now:     time.Now,
		logger:  logging.Default().With("component", "knowledge"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve implements Store.
func (s *MemoryStore) Retrieve(ctx context.Context, query string, filter *catalogue.HeuristicID, topK int) ([]KnowledgeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, herrors.New(herrors.KindKnowledgeStoreUnavailable, "retrieve", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, herrors.New(herrors.KindKnowledgeStoreUnavailable, "retrieve", ErrStoreClosed)
	}
	return Rank(s.entries, query, filter, topK), nil
}

// AddFeedback implements Store.
func (s *MemoryStore) AddFeedback(ctx context.Context, fb Feedback) (KnowledgeEntry, error) {
	return s.appendFeedback(ctx, fb, nil)
}

// appendFeedback validates fb, builds the entry and, if persist is set,
// persists it before it becomes visible to readers.
func (s *MemoryStore) appendFeedback(ctx context.Context, fb Feedback, persist func(KnowledgeEntry) error) (KnowledgeEntry, error) {
	if err := validate.Struct(fb); err != nil {
		return KnowledgeEntry{}, herrors.Invalid("add_feedback", fb.HeuristicID, fmt.Errorf("%w: %v", ErrInvalidFeedback, err))
	}
	hid, err := catalogue.ParseHeuristicID(fb.HeuristicID)
	if err != nil {
		return KnowledgeEntry{}, herrors.Invalid("add_feedback", fb.HeuristicID, err)
	}
	if err := ctx.Err(); err != nil {
		return KnowledgeEntry{}, herrors.New(herrors.KindKnowledgeStoreUnavailable, "add_feedback", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return KnowledgeEntry{}, herrors.New(herrors.KindKnowledgeStoreUnavailable, "add_feedback", ErrStoreClosed)
	}

	ts := s.now().UTC()
	entry := KnowledgeEntry{
		ID:            fmt.Sprintf("kb_%03d", len(s.entries)+1),
		Category:      "Expert Feedback - " + fb.ViolationType,
		Content:       fb.Rationale,
		HeuristicID:   hid,
		UIPattern:     fb.UIPattern,
		ViolationType: fb.ViolationType,
		Source:        SourceExpertValidation,
		Timestamp:     &ts,
	}
	if persist != nil {
		if err := persist(entry); err != nil {
			return KnowledgeEntry{}, herrors.New(herrors.KindKnowledgeStoreUnavailable, "add_feedback", err)
		}
	}
	s.entries = append(s.entries, entry)
	s.logger.Info("Added expert feedback entry", "id", entry.ID, "heuristic_id", hid)
	return entry, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}, herrors.New(herrors.KindKnowledgeStoreUnavailable, "stats", ErrStoreClosed)
	}
	st := Stats{
		TotalEntries:     len(s.entries),
		ByHeuristic:      make(map[catalogue.HeuristicID]int),
		IndexInitialized: true,
	}
	for _, e := range s.entries {
		st.ByHeuristic[e.HeuristicID]++
		if e.Source == SourceExpertValidation {
			st.FeedbackEntries++
		}
	}
	return st, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
