package store

import (
	"encoding/json"
	"fmt"

	"github.com/etcd-io/bbolt"
	"github.com/rs/zerolog/log"

	"github.com/beachside/racetrack/go/internal/race"
)

var (
	raceStateBucketName = []byte("raceState")
	currentStateKey     = []byte("current")
)

// BoltStore keeps the race state as a single JSON blob in a bbolt bucket.
// The nested roster and session structures round-trip through the JSON
// encoding losslessly.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the snapshot database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0644, nil)
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}
	return NewBoltStore(db), nil
}

func NewBoltStore(db *bbolt.DB) *BoltStore {
	return &BoltStore{db: db}
}

func (s *BoltStore) bucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	if !tx.Writable() {
		bkt := tx.Bucket(raceStateBucketName)
		if bkt == nil {
			return nil, bbolt.ErrBucketNotFound
		}
		return bkt, nil
	}
	return tx.CreateBucketIfNotExists(raceStateBucketName)
}

// Load returns the last persisted state. A missing or undecodable snapshot
// yields the default state so a fresh or damaged database never blocks
// startup.
func (s *BoltStore) Load() (race.State, error) {
	var data []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		bkt, err := s.bucket(tx)
		if err != nil {
			return err
		}
		if v := bkt.Get(currentStateKey); v != nil {
			data = append(data, v...)
		}
		return nil
	})

	if err == bbolt.ErrBucketNotFound || (err == nil && data == nil) {
		return race.DefaultState(), nil
	}
	if err != nil {
		return race.DefaultState(), err
	}

	var state race.State
	if err := json.Unmarshal(data, &state); err != nil {
		log.Warn().Err(err).Msg("snapshot undecodable, starting from default state")
		return race.DefaultState(), nil
	}

	// Older snapshots may predate the derived fields.
	state.Recompute()
	return state, nil
}

func (s *BoltStore) Save(state race.State) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bkt, err := s.bucket(tx)
		if err != nil {
			return err
		}
		return bkt.Put(currentStateKey, encoded)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
