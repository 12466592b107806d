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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianHeuristics/pkg/logging"
)

// feedbackPrefix namespaces persisted feedback. Keys carry a zero-padded
// sequence so iteration order equals insertion order.
const feedbackPrefix = "kb:feedback:"

// BadgerConfig configures BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps the database in RAM. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every feedback write.
	SyncWrites bool

	// Logger receives store logs and Badger's internal logs. Nil disables
	// Badger's logs and leaves store logs on the default logger.
	Logger *logging.Logger
}

// BadgerStore is a MemoryStore whose expert feedback survives restarts.
//
// Seed entries are never written to disk; they come from the binary. On
// open, persisted feedback is replayed after the seed in insertion order,
// so ids assigned before a restart stay stable.
type BadgerStore struct {
	*MemoryStore
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the feedback database and replays it
// on top of seed.
func OpenBadgerStore(cfg BadgerConfig, seed []KnowledgeEntry) (*BadgerStore, error) {
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}

	mem := NewMemoryStore(seed, WithLogger(cfg.Logger))
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(feedbackPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var entry KnowledgeEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			mem.entries = append(mem.entries, entry)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("replay feedback: %w", err)
	}

	mem.logger.Info("Knowledge base opened", "entries", len(mem.entries), "in_memory", cfg.InMemory)
	return &BadgerStore{MemoryStore: mem, db: db}, nil
}

// AddFeedback persists the entry, then makes it visible.
func (s *BadgerStore) AddFeedback(ctx context.Context, fb Feedback) (KnowledgeEntry, error) {
	return s.appendFeedback(ctx, fb, func(entry KnowledgeEntry) error {
		val, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s%010d", feedbackPrefix, len(s.entries))
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(key), val)
		})
	})
}

// Close closes the in-memory view and the database.
func (s *BadgerStore) Close() error {
	_ = s.MemoryStore.Close()
	return s.db.Close()
}

var _ Store = (*BadgerStore)(nil)

// badgerLogger adapts slog to Badger's logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func openBadger(cfg BadgerConfig) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent knowledge base")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create knowledge base directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With("component", "badger").Slog()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}
