// SacredConnect - Community, Worship, and Giving Platform
// Copyright 2026 SacredConnect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sacredconnect/sacredconnect

// Package counters implements the rolling counter store backing real-time
// analytics. Counters live in BadgerDB under time-bucketed keys with a TTL,
// so stale buckets expire without an explicit cleanup job. Every write goes
// to two buckets: the containing hour and the containing day.
//
// Key layout:
//
//	c:<namespace>:<bucket>:<field>   int64 counter
//	f:<namespace>:<bucket>:<field>   float64 counter
//	m:<namespace>:<bucket>:<member>  set membership marker (empty value)
//
// Hour buckets are formatted 2006-01-02-15, day buckets 2006-01-02, both
// in UTC. The TTL is refreshed on every write, so a bucket expires only
// after its retention window passes with no further activity.
package counters

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/sacredconnect/sacredconnect/internal/config"
	"github.com/sacredconnect/sacredconnect/internal/logging"
	"github.com/sacredconnect/sacredconnect/internal/metrics"
)

// Bucket time formats, UTC.
const (
	hourFormat = "2006-01-02-15"
	dayFormat  = "2006-01-02"
)

// maxConflictRetries bounds the optimistic-concurrency retry loop.
const maxConflictRetries = 16

// Store is a Badger-backed rolling counter store. Safe for concurrent use.
type Store struct {
	db      *badger.DB
	hourTTL time.Duration
	dayTTL  time.Duration
}

// Open opens (or creates) the counter store at cfg.Dir. An empty Dir opens
// an in-memory store.
func Open(cfg config.CountersConfig) (*Store, error) {
	var opts badger.Options
	if cfg.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open counter store: %w", err)
	}

	logging.Info().
		Str("dir", cfg.Dir).
		Dur("hour_ttl", cfg.HourTTL).
		Dur("day_ttl", cfg.DayTTL).
		Msg("Counter store opened")

	return &Store{db: db, hourTTL: cfg.HourTTL, dayTTL: cfg.DayTTL}, nil
}

// NewInMemory opens an ephemeral store, used by tests and dev mode.
func NewInMemory(hourTTL, dayTTL time.Duration) (*Store, error) {
	return Open(config.CountersConfig{HourTTL: hourTTL, DayTTL: dayTTL})
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HourBucket returns the hour bucket containing t.
func HourBucket(t time.Time) string {
	return t.UTC().Format(hourFormat)
}

// DayBucket returns the day bucket containing t.
func DayBucket(t time.Time) string {
	return t.UTC().Format(dayFormat)
}

func counterKey(prefix, ns, bucket, field string) []byte {
	return []byte(prefix + ":" + ns + ":" + bucket + ":" + field)
}

// Increment adds delta to the named integer counter in both the hour and
// day buckets containing t. The bucket TTLs are refreshed.
func (s *Store) Increment(ns string, t time.Time, field string, delta int64) error {
	return s.update(func(txn *badger.Txn) error {
		if err := s.addInt(txn, counterKey("c", ns, HourBucket(t), field), delta, s.hourTTL); err != nil {
			return err
		}
		metrics.CounterWrites.WithLabelValues("hour").Inc()
		if err := s.addInt(txn, counterKey("c", ns, DayBucket(t), field), delta, s.dayTTL); err != nil {
			return err
		}
		metrics.CounterWrites.WithLabelValues("day").Inc()
		return nil
	})
}

// IncrementFloat adds delta to the named float counter in both buckets.
func (s *Store) IncrementFloat(ns string, t time.Time, field string, delta float64) error {
	return s.update(func(txn *badger.Txn) error {
		if err := s.addFloat(txn, counterKey("f", ns, HourBucket(t), field), delta, s.hourTTL); err != nil {
			return err
		}
		if err := s.addFloat(txn, counterKey("f", ns, DayBucket(t), field), delta, s.dayTTL); err != nil {
			return err
		}
		return nil
	})
}

// AddMember records membership of member in both time buckets. Adding the
// same member repeatedly is idempotent; the TTL is refreshed each time.
func (s *Store) AddMember(ns string, t time.Time, member string) error {
	return s.update(func(txn *badger.Txn) error {
		hourEntry := badger.NewEntry(counterKey("m", ns, HourBucket(t), member), nil).WithTTL(s.hourTTL)
		if err := txn.SetEntry(hourEntry); err != nil {
			return err
		}
		dayEntry := badger.NewEntry(counterKey("m", ns, DayBucket(t), member), nil).WithTTL(s.dayTTL)
		return txn.SetEntry(dayEntry)
	})
}

// Value returns the integer counter for a single field, zero when absent.
func (s *Store) Value(ns, bucket, field string) (int64, error) {
	var out int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(counterKey("c", ns, bucket, field))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out, err = strconv.ParseInt(string(val), 10, 64)
			return err
		})
	})
	return out, err
}

// Snapshot returns all integer counters in the given bucket, keyed by field.
// Expired entries are excluded.
func (s *Store) Snapshot(ns, bucket string) (map[string]int64, error) {
	out := map[string]int64{}
	prefix := counterKey("c", ns, bucket, "")
	err := s.scan(prefix, func(field string, val []byte) error {
		n, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return fmt.Errorf("counter %s:%s:%s: %w", ns, bucket, field, err)
		}
		out[field] = n
		return nil
	})
	return out, err
}

// SnapshotFloat returns all float counters in the given bucket.
func (s *Store) SnapshotFloat(ns, bucket string) (map[string]float64, error) {
	out := map[string]float64{}
	prefix := counterKey("f", ns, bucket, "")
	err := s.scan(prefix, func(field string, val []byte) error {
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return fmt.Errorf("counter %s:%s:%s: %w", ns, bucket, field, err)
		}
		out[field] = f
		return nil
	})
	return out, err
}

// Cardinality returns the number of distinct members recorded in the bucket.
func (s *Store) Cardinality(ns, bucket string) (int64, error) {
	var n int64
	prefix := counterKey("m", ns, bucket, "")
	err := s.scanKeys(prefix, func(string) error {
		n++
		return nil
	})
	return n, err
}

// Members returns the distinct members recorded in the bucket.
func (s *Store) Members(ns, bucket string) ([]string, error) {
	var out []string
	prefix := counterKey("m", ns, bucket, "")
	err := s.scanKeys(prefix, func(member string) error {
		out = append(out, member)
		return nil
	})
	return out, err
}

// update runs fn in a read-write transaction, retrying on write conflicts.
// Badger detects conflicting read-modify-write transactions at commit time;
// under concurrent increments of the same key a retry is routine.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	for attempt := 0; ; attempt++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if attempt >= maxConflictRetries {
			return fmt.Errorf("counter update: %w after %d retries", err, attempt)
		}
		metrics.CounterConflictRetries.Inc()
	}
}

func (s *Store) addInt(txn *badger.Txn, key []byte, delta int64, ttl time.Duration) error {
	current := int64(0)
	item, err := txn.Get(key)
	if err == nil {
		err = item.Value(func(val []byte) error {
			current, err = strconv.ParseInt(string(val), 10, 64)
			return err
		})
		if err != nil {
			return err
		}
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	val := strconv.AppendInt(nil, current+delta, 10)
	return txn.SetEntry(badger.NewEntry(key, val).WithTTL(ttl))
}

func (s *Store) addFloat(txn *badger.Txn, key []byte, delta float64, ttl time.Duration) error {
	current := float64(0)
	item, err := txn.Get(key)
	if err == nil {
		err = item.Value(func(val []byte) error {
			current, err = strconv.ParseFloat(string(val), 64)
			return err
		})
		if err != nil {
			return err
		}
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	val := strconv.AppendFloat(nil, current+delta, 'g', -1, 64)
	return txn.SetEntry(badger.NewEntry(key, val).WithTTL(ttl))
}

// scan iterates values under prefix, passing the key suffix and raw value.
func (s *Store) scan(prefix []byte, fn func(suffix string, val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			suffix := string(bytes.TrimPrefix(item.KeyCopy(nil), prefix))
			if err := item.Value(func(val []byte) error {
				return fn(suffix, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// scanKeys iterates keys under prefix without fetching values.
func (s *Store) scanKeys(prefix []byte, fn func(suffix string) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			suffix := string(bytes.TrimPrefix(it.Item().KeyCopy(nil), prefix))
			if err := fn(suffix); err != nil {
				return err
			}
		}
		return nil
	})
}
