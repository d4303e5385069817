package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmcdole/mangashelf/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketManga = []byte("manga")

	// One ordered index per sort order, see keys.go
	indexBuckets = map[domain.SortType][]byte{
		domain.SortYearAsc:        []byte("idx:published"),
		domain.SortScoreAsc:       []byte("idx:score:asc"),
		domain.SortScoreDesc:      []byte("idx:score:desc"),
		domain.SortPopularityAsc:  []byte("idx:popularity:asc"),
		domain.SortPopularityDesc: []byte("idx:popularity:desc"),
	}
)

// BoltStore implements domain.Store using BoltDB.
type BoltStore struct {
	db  *bolt.DB
	hub *Hub
}

var _ domain.Store = (*BoltStore)(nil)

// NewBoltStore opens (or creates) the store under baseDir. When remoteURL is
// set the database lives in a per-remote subdirectory so switching sources
// never mixes catalogs.
func NewBoltStore(baseDir, remoteURL string) (*BoltStore, error) {
	dir := baseDir
	if remoteURL != "" {
		dir = filepath.Join(baseDir, hashRemoteURL(remoteURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return OpenBolt(filepath.Join(dir, "mangashelf.db"))
}

// OpenBolt opens the database file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketManga); err != nil {
			return err
		}
		for _, bucket := range indexBuckets {
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

	return &BoltStore{db: db, hub: NewHub()}, nil
}

func hashRemoteURL(remoteURL string) string {
	normalized := strings.TrimRight(strings.ToLower(remoteURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *BoltStore) Close() error {
	s.hub.Close()
	return s.db.Close()
}

// === Writes ===

func (s *BoltStore) UpsertMany(items []domain.Manga) error {
	if len(items) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, m := range items {
			if m.ID == "" {
				return errors.New("upsert: manga without id")
			}
			if err := putManga(tx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.hub.Publish(ids(items))
	return nil
}

func (s *BoltStore) Update(item domain.Manga) error {
	_, err := s.Modify(item.ID, func(m *domain.Manga) { *m = item })
	return err
}

func (s *BoltStore) Modify(id string, fn func(*domain.Manga)) (domain.Manga, error) {
	var out domain.Manga
	err := s.db.Update(func(tx *bolt.Tx) error {
		current, ok, err := getManga(tx, []byte(id))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("modify %q: %w", id, domain.ErrNotFound)
		}
		fn(&current)
		current.ID = id
		out = current
		return putManga(tx, current)
	})
	if err != nil {
		return domain.Manga{}, err
	}

	s.hub.Publish([]string{id})
	return out, nil
}

// putManga writes the row and re-keys its index entries.
func putManga(tx *bolt.Tx, m domain.Manga) error {
	rows := tx.Bucket(bucketManga)

	prev, ok, err := getManga(tx, []byte(m.ID))
	if err != nil {
		return err
	}
	if ok {
		for sort, bucket := range indexBuckets {
			if err := tx.Bucket(bucket).Delete(indexKey(sort, prev)); err != nil {
				return err
			}
		}
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %q: %w", m.ID, err)
	}
	if err := rows.Put([]byte(m.ID), data); err != nil {
		return err
	}
	for sort, bucket := range indexBuckets {
		if err := tx.Bucket(bucket).Put(indexKey(sort, m), nil); err != nil {
			return err
		}
	}
	return nil
}

func getManga(tx *bolt.Tx, id []byte) (domain.Manga, bool, error) {
	v := tx.Bucket(bucketManga).Get(id)
	if v == nil {
		return domain.Manga{}, false, nil
	}
	var m domain.Manga
	if err := json.Unmarshal(v, &m); err != nil {
		return domain.Manga{}, false, fmt.Errorf("decode %q: %w", id, err)
	}
	return m, true, nil
}

// === Reads ===

func (s *BoltStore) GetAll() ([]domain.Manga, error) {
	return s.scan(domain.SortYearAsc, 0, -1, nil)
}

func (s *BoltStore) GetFavorites() ([]domain.Manga, error) {
	return s.scan(domain.SortYearAsc, 0, -1, func(m domain.Manga) bool { return m.IsFavorite })
}

func (s *BoltStore) GetPage(sort domain.SortType, limit, offset int) ([]domain.Manga, error) {
	if limit <= 0 {
		return []domain.Manga{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	return s.scan(sort, offset, limit, nil)
}

func (s *BoltStore) GetByID(id string) (domain.Manga, bool, error) {
	var (
		m  domain.Manga
		ok bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		m, ok, err = getManga(tx, []byte(id))
		return err
	})
	return m, ok, err
}

func (s *BoltStore) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketManga).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltStore) Subscribe(ids ...string) (<-chan struct{}, func()) {
	return s.hub.Subscribe(ids...)
}

// scan walks the index for sort, skipping offset rows and collecting at most
// limit (all when limit < 0) that pass keep.
func (s *BoltStore) scan(sort domain.SortType, offset, limit int, keep func(domain.Manga) bool) ([]domain.Manga, error) {
	out := []domain.Manga{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(indexBuckets[sort.Normalize()]).Cursor()
		skipped := 0
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if limit >= 0 && len(out) >= limit {
				break
			}
			if skipped < offset {
				skipped++
				continue
			}
			m, ok, err := getManga(tx, idFromIndexKey(k))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("index entry without row: %q", idFromIndexKey(k))
			}
			if keep != nil && !keep(m) {
				continue
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ids(items []domain.Manga) []string {
	out := make([]string, len(items))
	for i, m := range items {
		out[i] = m.ID
	}
	return out
}
