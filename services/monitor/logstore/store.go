// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/sentinel/services/monitor/history"
	"github.com/AleutianAI/sentinel/services/monitor/rules"
	"github.com/AleutianAI/sentinel/services/monitor/storage/badger"
)

// Options configures a Store.
type Options struct {
	// BufferSize is the capacity of the in-memory degraded-mode buffer.
	// Default: 256 records.
	BufferSize int

	// Logger receives store events. Default: slog.Default().
	Logger *slog.Logger
}

// Store is the append-only execution-record log.
//
// # Description
//
// Append is the only mutation; records are never updated, and deleted
// only by retention pruning. When the badger backend rejects a write,
// the record is buffered in memory and the store enters degraded mode;
// buffered records are flushed ahead of the next successful append.
// Data is never silently dropped: if the buffer itself overflows, the
// oldest buffered record is evicted and counted in DroppedRecords.
//
// # Thread Safety
//
// Safe for concurrent use. Badger transactions give appenders isolation;
// readers see a snapshot and never block appends.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	mu       sync.Mutex // guards buffer and degraded flag
	buffer   *history.RingBuffer[*ExecutionRecord]
	degraded bool
	dropped  int

	// failWrites simulates an unavailable backend in tests.
	failWrites error
}

// NewStore creates a record store on top of an open badger database.
func NewStore(db *badger.DB, opts Options) *Store {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: opts.Logger,
		buffer: history.NewRingBuffer[*ExecutionRecord](opts.BufferSize),
	}
}

// Append persists a record, assigning an ID if the record has none.
//
// # Description
//
// On backend failure the record is buffered and the store flags itself
// degraded; the caller's cycle continues. Append therefore only returns
// an error for a nil context or cancellation, never for backend
// unavailability.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - record: The record to persist. ID and Timestamp are filled if zero.
//
// # Outputs
//
//   - string: The record ID.
//   - error: Non-nil only for context errors.
func (s *Store) Append(ctx context.Context, record *ExecutionRecord) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("context is required")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	// Flush any backlog first so records land in arrival order.
	s.flushBuffer(ctx)

	if err := s.writeRecords(ctx, record); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.bufferRecord(record, err)
	} else {
		s.clearDegraded()
	}

	return record.ID, nil
}

// writeRecords persists records in one transaction.
func (s *Store) writeRecords(ctx context.Context, records ...*ExecutionRecord) error {
	s.mu.Lock()
	injected := s.failWrites
	s.mu.Unlock()
	if injected != nil {
		return injected
	}

	return s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		for _, r := range records {
			data, err := encodeRecord(r)
			if err != nil {
				return err
			}
			if err := txn.Set(r.key(), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// bufferRecord stashes a record after a failed write and marks the
// store degraded.
func (s *Store) bufferRecord(record *ExecutionRecord, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buffer.IsFull() {
		s.dropped++
	}
	s.buffer.Push(record)
	if !s.degraded {
		s.degraded = true
		s.logger.Warn("log store degraded, buffering records in memory",
			slog.String("error", cause.Error()))
	}
}

func (s *Store) clearDegraded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded && s.buffer.IsEmpty() {
		s.degraded = false
		s.logger.Info("log store recovered from degraded mode")
	}
}

// flushBuffer retries buffered records. Records that still fail go back
// into the buffer in order.
func (s *Store) flushBuffer(ctx context.Context) {
	s.mu.Lock()
	pending := s.buffer.Drain()
	s.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	if err := s.writeRecords(ctx, pending...); err != nil {
		s.mu.Lock()
		for _, r := range pending {
			if s.buffer.IsFull() {
				s.dropped++
			}
			s.buffer.Push(r)
		}
		s.mu.Unlock()
		return
	}

	s.logger.Info("flushed buffered records", slog.Int("count", len(pending)))
	s.clearDegraded()
}

// RetryFlush attempts to drain the degraded-mode buffer. Called by the
// orchestrator between cycles.
func (s *Store) RetryFlush(ctx context.Context) {
	if ctx == nil {
		return
	}
	s.flushBuffer(ctx)
}

// Degraded reports whether records are currently buffered in memory.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// BufferedCount returns the number of records waiting in the
// degraded-mode buffer.
func (s *Store) BufferedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Len()
}

// DroppedRecords returns how many buffered records were evicted because
// the degraded-mode buffer overflowed.
func (s *Store) DroppedRecords() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Query describes a record query. The zero value selects all domains
// and all history.
type Query struct {
	// Domain filters to one domain when non-empty.
	Domain rules.Domain

	// From excludes records before this time when non-zero.
	From time.Time

	// To excludes records after this time when non-zero.
	To time.Time

	// Limit caps the result count when positive.
	Limit int
}

// Records returns matching records ordered newest-first.
//
// # Description
//
// Scans the badger keyspace by domain prefix. Records that fail to
// decode are skipped and logged, never aborting the scan. Results
// include degraded-mode buffered records so a reader always sees every
// appended record.
func (s *Store) Records(ctx context.Context, q Query) ([]*ExecutionRecord, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	var out []*ExecutionRecord
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = domainPrefix(q.Domain)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var decoded *ExecutionRecord
			err := it.Item().Value(func(val []byte) error {
				r, err := decodeRecord(val)
				if err != nil {
					return err
				}
				decoded = r
				return nil
			})
			if err != nil {
				s.logger.Warn("skipping undecodable record",
					slog.String("key", string(it.Item().Key())),
					slog.String("error", err.Error()))
				continue
			}
			if matches(decoded, q) {
				out = append(out, decoded)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}

	// Include records still waiting in the degraded-mode buffer.
	s.mu.Lock()
	s.buffer.ForEach(func(r *ExecutionRecord) bool {
		if matches(r, q) {
			out = append(out, r)
		}
		return true
	})
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(r *ExecutionRecord, q Query) bool {
	if q.Domain != "" && r.Domain != q.Domain {
		return false
	}
	if !q.From.IsZero() && r.Timestamp.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && r.Timestamp.After(q.To) {
		return false
	}
	return true
}

// RetentionPolicy bounds how much history is kept.
type RetentionPolicy struct {
	// MaxAge removes records older than this when positive.
	MaxAge time.Duration

	// MaxPerDomain keeps at most this many records per domain when
	// positive, evicting oldest first.
	MaxPerDomain int
}

// Prune applies the retention policy and returns the number of records
// removed.
func (s *Store) Prune(ctx context.Context, policy RetentionPolicy) (int, error) {
	if ctx == nil {
		return 0, fmt.Errorf("context is required")
	}
	if policy.MaxAge <= 0 && policy.MaxPerDomain <= 0 {
		return 0, nil
	}

	cutoff := time.Time{}
	if policy.MaxAge > 0 {
		cutoff = time.Now().Add(-policy.MaxAge)
	}

	// Collect doomed keys under a read transaction, then delete in a
	// separate write so long scans don't hold the write path.
	var doomed [][]byte
	perDomain := make(map[rules.Domain][][]byte) // keys oldest-first per domain

	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			domain := keyDomain(key)
			perDomain[domain] = append(perDomain[domain], key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan for pruning: %w", err)
	}

	for _, keys := range perDomain {
		// Keys are lexicographically time-ordered within a domain.
		excess := 0
		if policy.MaxPerDomain > 0 && len(keys) > policy.MaxPerDomain {
			excess = len(keys) - policy.MaxPerDomain
		}
		for i, key := range keys {
			if i < excess {
				doomed = append(doomed, key)
				continue
			}
			if !cutoff.IsZero() && keyOlderThan(key, cutoff) {
				doomed = append(doomed, key)
			}
		}
	}

	if len(doomed) == 0 {
		return 0, nil
	}

	err = s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune records: %w", err)
	}

	s.logger.Debug("pruned records", slog.Int("count", len(doomed)))
	return len(doomed), nil
}

// keyOlderThan parses the timestamp segment of a record key. Malformed
// keys are treated as not-old so pruning never deletes what it cannot
// parse.
func keyOlderThan(key []byte, cutoff time.Time) bool {
	parts := strings.SplitN(string(key[len(keyPrefix):]), "/", 3)
	if len(parts) != 3 {
		return false
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return false
	}
	return time.Unix(0, nanos).Before(cutoff)
}
