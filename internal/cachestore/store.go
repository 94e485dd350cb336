// Package cachestore persists listing pools between sessions as TTL'd
// JSON entries keyed by view: curated:<type> or searched:<type>:<query>.
// Entries are a soft cache, last writer wins.
package cachestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dealradar/internal/listing"
)

type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

// entryPayload is the persisted layout: the listing set plus the write
// timestamp in epoch milliseconds.
type entryPayload struct {
	Items     []listing.Listing `json:"items"`
	Timestamp int64             `json:"timestamp"`
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	s := &Store{readDB: readDB, writeDB: writeDB}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS pools (
			key        TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// CuratedKey returns the cache key for the no-query view of an item type.
func CuratedKey(t listing.ItemType) string {
	return "curated:" + string(t)
}

// SearchedKey returns the cache key for an explicit query. The query text
// is normalized so trivially different spellings share an entry.
func SearchedKey(t listing.ItemType, query string) string {
	return "searched:" + string(t) + ":" + NormalizeQuery(query)
}

// NormalizeQuery lowercases and collapses whitespace.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Get returns the cached listing set for key if the entry is younger than
// ttl. Malformed or stale entries are deleted and reported as a miss.
func (s *Store) Get(key string, ttl time.Duration) ([]listing.Listing, bool) {
	var raw string
	err := s.readDB.QueryRow("SELECT payload FROM pools WHERE key = ?", key).Scan(&raw)
	if err != nil {
		return nil, false
	}

	var p entryPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.Timestamp <= 0 {
		s.Delete(key)
		return nil, false
	}

	age := time.Since(time.UnixMilli(p.Timestamp))
	if age < 0 || age >= ttl {
		s.Delete(key)
		return nil, false
	}
	if len(p.Items) == 0 {
		s.Delete(key)
		return nil, false
	}
	return p.Items, true
}

// Age returns how long ago the entry under key was written, regardless of
// TTL. ok is false when there is no parseable entry.
func (s *Store) Age(key string) (time.Duration, bool) {
	var raw string
	err := s.readDB.QueryRow("SELECT payload FROM pools WHERE key = ?", key).Scan(&raw)
	if err != nil {
		return 0, false
	}
	var p entryPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.Timestamp <= 0 {
		return 0, false
	}
	return time.Since(time.UnixMilli(p.Timestamp)), true
}

// Set overwrites the entry under key with items and a fresh timestamp.
func (s *Store) Set(key string, items []listing.Listing) error {
	payload, err := json.Marshal(entryPayload{Items: items, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}
	_, err = s.writeDB.Exec(`
		INSERT INTO pools (key, payload, created_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at
	`, key, string(payload), time.Now())
	return err
}

func (s *Store) Delete(key string) error {
	_, err := s.writeDB.Exec("DELETE FROM pools WHERE key = ?", key)
	return err
}

// RemoveItem drops one listing id from the entry under key, keeping the
// original timestamp. An absent key or id is a no-op. If removal empties
// the entry it is deleted outright so the next visit refetches instead of
// reading a cached nothing.
func (s *Store) RemoveItem(key, id string) error {
	var raw string
	err := s.readDB.QueryRow("SELECT payload FROM pools WHERE key = ?", key).Scan(&raw)
	if err != nil {
		return nil
	}

	var p entryPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return s.Delete(key)
	}

	kept := p.Items[:0]
	removed := false
	for _, l := range p.Items {
		if l.ID == id {
			removed = true
			continue
		}
		kept = append(kept, l)
	}
	if !removed {
		return nil
	}
	if len(kept) == 0 {
		return s.Delete(key)
	}

	p.Items = kept
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}
	_, err = s.writeDB.Exec("UPDATE pools SET payload = ? WHERE key = ?", string(payload), key)
	return err
}

// Prune deletes entries written more than age ago and returns the count.
func (s *Store) Prune(age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	res, err := s.writeDB.Exec("DELETE FROM pools WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}

// Clear deletes every entry.
func (s *Store) Clear() error {
	_, err := s.writeDB.Exec("DELETE FROM pools")
	return err
}

// Stats returns the entry count and on-disk size.
func (s *Store) Stats(dbPath string) (int, int64, error) {
	var count int
	if err := s.readDB.QueryRow("SELECT COUNT(*) FROM pools").Scan(&count); err != nil {
		return 0, 0, err
	}
	fi, err := os.Stat(dbPath)
	if err != nil {
		return count, 0, err
	}
	return count, fi.Size(), nil
}
