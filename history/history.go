package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/yairfalse/guardsync/reconciler"
	"github.com/yairfalse/guardsync/verifier"
)

// Bucket names in bbolt
var (
	bucketSweeps        = []byte("sweeps")
	bucketVerifications = []byte("verifications")
)

// Store keeps run history on disk so the report command can show what the
// last sweeps and verifications did.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the history database inside dir.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "guardsync.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketSweeps, bucketVerifications} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordSweep appends one reconciliation result.
func (s *Store) RecordSweep(result *reconciler.Result) error {
	return s.append(bucketSweeps, result)
}

// RecordVerification appends one verification report.
func (s *Store) RecordVerification(report *verifier.Report) error {
	return s.append(bucketVerifications, report)
}

// RecentSweeps returns up to n results, newest first.
func (s *Store) RecentSweeps(n int) ([]reconciler.Result, error) {
	var results []reconciler.Result
	err := s.recent(bucketSweeps, n, func(value []byte) error {
		var r reconciler.Result
		if err := json.Unmarshal(value, &r); err != nil {
			return err
		}
		results = append(results, r)
		return nil
	})
	return results, err
}

// RecentVerifications returns up to n reports, newest first.
func (s *Store) RecentVerifications(n int) ([]verifier.Report, error) {
	var reports []verifier.Report
	err := s.recent(bucketVerifications, n, func(value []byte) error {
		var r verifier.Report
		if err := json.Unmarshal(value, &r); err != nil {
			return err
		}
		reports = append(reports, r)
		return nil
	})
	return reports, err
}

func (s *Store) append(bucket []byte, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(sequenceKey(seq), value)
	})
}

func (s *Store) recent(bucket []byte, n int, decode func(value []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		count := 0
		for k, v := c.Last(); k != nil && count < n; k, v = c.Prev() {
			if err := decode(v); err != nil {
				return fmt.Errorf("failed to decode record: %w", err)
			}
			count++
		}
		return nil
	})
}

// sequenceKey encodes a sequence number so keys sort chronologically.
func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
