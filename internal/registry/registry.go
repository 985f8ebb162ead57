// SPDX-License-Identifier: MIT

// Package registry is the durable mirror of clips. Jobs live in memory;
// the registry makes finished work visible across restarts and carries
// the anonymous-session bookkeeping.
package registry

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/log"
	"github.com/dschwenke/clippy/internal/metrics"
)

// Record is one durable clip row.
//
// Keys: "clip:<job_id>" holds the record; "anon:<session_id>:<job_id>"
// is a membership index kept only while the clip is session-owned.
type Record struct {
	JobID           string     `json:"job_id"`
	Owner           string     `json:"owner"`
	SessionOwned    bool       `json:"session_owned"`
	SourceURL       string     `json:"source_url"`
	FinalPath       string     `json:"final_path"`
	SubtitlePath    string     `json:"subtitle_path"`
	SerializedState []byte     `json:"serialized_state"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

const (
	clipPrefix = "clip:"
	anonPrefix = "anon:"
)

// Store persists clip records in badger.
type Store struct {
	db *badger.DB
}

// Open opens or creates the registry at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errkind.Wrap(errkind.KindIO, err, "open clip registry")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func clipKey(jobID string) []byte { return []byte(clipPrefix + jobID) }

func anonKey(sessionID, jobID string) []byte {
	return []byte(anonPrefix + sessionID + ":" + jobID)
}

// Save upserts a record. Session-owned records must carry a future
// expiry; owned records must not carry one.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec.JobID == "" {
		return errkind.New(errkind.KindInvalidInput, "record without job id")
	}
	if rec.SessionOwned {
		if rec.ExpiresAt == nil || !rec.ExpiresAt.After(time.Now()) {
			return errkind.New(errkind.KindInvalidInput, "session-owned record needs a future expiry")
		}
	} else if rec.ExpiresAt != nil {
		return errkind.New(errkind.KindInvalidInput, "owned record must not carry an expiry")
	}

	buf, err := json.Marshal(rec)
	if err != nil {
		return errkind.Wrap(errkind.KindInternal, err, "encode clip record")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(clipKey(rec.JobID), buf); err != nil {
			return err
		}
		if rec.SessionOwned {
			return txn.Set(anonKey(rec.Owner, rec.JobID), nil)
		}
		return nil
	})
	if err != nil {
		return errkind.Wrap(errkind.KindIO, err, "save clip record")
	}
	return nil
}

// Load fetches one record by job id.
func (s *Store) Load(ctx context.Context, jobID string) (*Record, error) {
	var out Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(clipKey(jobID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errkind.New(errkind.KindNotFound, "clip %s not found", jobID)
	}
	if err != nil {
		return nil, errkind.Wrap(errkind.KindIO, err, "load clip record")
	}
	return &out, nil
}

// Delete removes a record and its session index entry, idempotently.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, jobID)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		if rec.SessionOwned {
			if err := txn.Delete(anonKey(rec.Owner, rec.JobID)); err != nil {
				return err
			}
		}
		return txn.Delete(clipKey(jobID))
	})
	if err != nil {
		return errkind.Wrap(errkind.KindIO, err, "delete clip record")
	}
	return nil
}

// ListBySession returns the session's clips, newest first, at most
// limit entries.
func (s *Store) ListBySession(ctx context.Context, sessionID string, limit int) ([]*Record, error) {
	var out []*Record
	prefix := []byte(anonPrefix + sessionID + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			jobID := string(key[bytes.LastIndexByte(key, ':')+1:])
			rec, err := getRecord(txn, jobID)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.KindIO, err, "list session clips")
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Promote rewrites every clip owned by the session to the user and
// clears its expiry. Idempotent; returns the number of rows moved.
func (s *Store) Promote(ctx context.Context, sessionID, userID string) (int, error) {
	logger := log.WithComponentFromContext(ctx, "registry")
	moved := 0
	prefix := []byte(anonPrefix + sessionID + ":")

	err := s.db.Update(func(txn *badger.Txn) error {
		moved = 0
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		var jobIDs []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			jobIDs = append(jobIDs, string(key[bytes.LastIndexByte(key, ':')+1:]))
		}

		for _, jobID := range jobIDs {
			rec, err := getRecord(txn, jobID)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			rec.Owner = userID
			rec.SessionOwned = false
			rec.ExpiresAt = nil
			buf, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := txn.Set(clipKey(jobID), buf); err != nil {
				return err
			}
			if err := txn.Delete(anonKey(sessionID, jobID)); err != nil {
				return err
			}
			moved++
		}
		return nil
	})
	if err != nil {
		return 0, errkind.Wrap(errkind.KindIO, err, "promote session clips")
	}
	if moved > 0 {
		metrics.PromotedClipsTotal.Add(float64(moved))
		logger.Info().Str("session", sessionID).Str("user", userID).Int("clips", moved).Msg("promoted session clips")
	}
	return moved, nil
}

// Sweep deletes anonymous records whose expiry has passed. Idempotent;
// returns the number of rows removed.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	logger := log.WithComponentFromContext(ctx, "registry")
	removed := 0

	err := s.db.Update(func(txn *badger.Txn) error {
		removed = 0
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(anonPrefix)
		type victim struct{ sessionID, jobID string }
		var victims []victim

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, anonPrefix)
			i := strings.LastIndexByte(rest, ':')
			if i < 0 {
				continue
			}
			victims = append(victims, victim{sessionID: rest[:i], jobID: rest[i+1:]})
		}

		for _, v := range victims {
			rec, err := getRecord(txn, v.jobID)
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					// Orphaned index row.
					if err := txn.Delete(anonKey(v.sessionID, v.jobID)); err != nil {
						return err
					}
					continue
				}
				return err
			}
			if !rec.SessionOwned || rec.ExpiresAt == nil || rec.ExpiresAt.After(now) {
				continue
			}
			if err := txn.Delete(clipKey(v.jobID)); err != nil {
				return err
			}
			if err := txn.Delete(anonKey(v.sessionID, v.jobID)); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, errkind.Wrap(errkind.KindIO, err, "sweep expired clips")
	}
	if removed > 0 {
		metrics.RegistrySweptTotal.Add(float64(removed))
		logger.Info().Int("clips", removed).Msg("swept expired anonymous clips")
	}
	return removed, nil
}

func getRecord(txn *badger.Txn, jobID string) (*Record, error) {
	item, err := txn.Get(clipKey(jobID))
	if err != nil {
		return nil, err
	}
	var out Record
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &out)
	}); err != nil {
		return nil, err
	}
	return &out, nil
}
