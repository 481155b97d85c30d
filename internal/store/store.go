// Package store persists per-iteration progress records to BoltDB
// (spec SPEC_FULL.md §6.6), in the same embedded-pure-Go-no-C-deps
// style the teacher's workflow store uses, adapted to a simple
// append-only log keyed by run id and iteration.
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/swarmguard/bcdsolver/internal/progress"
)

var bucketRuns = []byte("runs")

// Store is a BoltDB-backed append log of progress.Record, one bucket
// per run id.
type Store struct {
	db *bbolt.DB

	writeLatency metric.Float64Histogram
	readLatency  metric.Float64Histogram
}

// Open opens (creating if absent) the BoltDB file at path.
func Open(path string, meter metric.Meter) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}

	writeLatency, _ := meter.Float64Histogram("bcd_store_write_ms")
	readLatency, _ := meter.Float64Histogram("bcd_store_read_ms")
	return &Store{db: db, writeLatency: writeLatency, readLatency: readLatency}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append records one iteration's progress under runID.
func (s *Store) Append(ctx context.Context, runID string, rec progress.Record) error {
	start := time.Now()
	defer func() {
		if s.writeLatency != nil {
			s.writeLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("run_id", runID)))
		}
	}()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		b, err := runs.CreateBucketIfNotExists([]byte(runID))
		if err != nil {
			return err
		}
		return b.Put(iterationKey(rec.Iteration), data)
	})
}

// List returns every progress record for runID in iteration order.
func (s *Store) List(ctx context.Context, runID string) ([]progress.Record, error) {
	start := time.Now()
	defer func() {
		if s.readLatency != nil {
			s.readLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("run_id", runID)))
		}
	}()

	var out []progress.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		b := runs.Bucket([]byte(runID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec progress.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("store: unmarshal record: %w", err)
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

func iterationKey(iter int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(iter))
	return buf
}
