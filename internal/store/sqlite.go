package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmcdole/mangashelf/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

const mangaColumns = "id, image_url, title, category, score, popularity, published_at, is_favorite, is_read"

// orderClauses mirror the bolt index order: value first, ID ascending on ties.
var orderClauses = map[domain.SortType]string{
	domain.SortYearAsc:        "published_at ASC, id ASC",
	domain.SortScoreAsc:       "score ASC, id ASC",
	domain.SortScoreDesc:      "score DESC, id ASC",
	domain.SortPopularityAsc:  "popularity ASC, id ASC",
	domain.SortPopularityDesc: "popularity DESC, id ASC",
}

// SQLiteStore implements domain.Store on a single SQLite table.
//
// The pool is limited to one connection, which serializes transactions and
// makes ":memory:" databases usable.
type SQLiteStore struct {
	db  *sql.DB
	hub *Hub
}

var _ domain.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at dbPath and applies the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	s := &SQLiteStore{db: db, hub: NewHub()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS manga (
		id TEXT PRIMARY KEY,
		image_url TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL DEFAULT 0,
		popularity INTEGER NOT NULL DEFAULT 0,
		published_at INTEGER NOT NULL DEFAULT 0,
		is_favorite INTEGER NOT NULL DEFAULT 0,
		is_read INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_manga_published ON manga(published_at, id);
	CREATE INDEX IF NOT EXISTS idx_manga_score ON manga(score, id);
	CREATE INDEX IF NOT EXISTS idx_manga_popularity ON manga(popularity, id);
	CREATE INDEX IF NOT EXISTS idx_manga_favorite ON manga(is_favorite);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	s.hub.Close()
	return s.db.Close()
}

// === Writes ===

func (s *SQLiteStore) UpsertMany(items []domain.Manga) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO manga (` + mangaColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			image_url = excluded.image_url,
			title = excluded.title,
			category = excluded.category,
			score = excluded.score,
			popularity = excluded.popularity,
			published_at = excluded.published_at,
			is_favorite = excluded.is_favorite,
			is_read = excluded.is_read
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range items {
		if m.ID == "" {
			return errors.New("upsert: manga without id")
		}
		if _, err := stmt.Exec(m.ID, m.ImageURL, m.Title, m.Category, m.Score, m.Popularity,
			m.PublishedAt, m.IsFavorite, m.IsRead); err != nil {
			return fmt.Errorf("upsert %q: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.hub.Publish(ids(items))
	return nil
}

func (s *SQLiteStore) Update(item domain.Manga) error {
	_, err := s.Modify(item.ID, func(m *domain.Manga) { *m = item })
	return err
}

func (s *SQLiteStore) Modify(id string, fn func(*domain.Manga)) (domain.Manga, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return domain.Manga{}, err
	}
	defer tx.Rollback()

	m, err := scanManga(tx.QueryRow(`SELECT `+mangaColumns+` FROM manga WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Manga{}, fmt.Errorf("modify %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Manga{}, err
	}

	fn(&m)
	m.ID = id

	_, err = tx.Exec(`
		UPDATE manga SET image_url = ?, title = ?, category = ?, score = ?, popularity = ?,
			published_at = ?, is_favorite = ?, is_read = ?
		WHERE id = ?`,
		m.ImageURL, m.Title, m.Category, m.Score, m.Popularity, m.PublishedAt, m.IsFavorite, m.IsRead, id)
	if err != nil {
		return domain.Manga{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Manga{}, err
	}

	s.hub.Publish([]string{id})
	return m, nil
}

// === Reads ===

func (s *SQLiteStore) GetAll() ([]domain.Manga, error) {
	return s.query(`SELECT ` + mangaColumns + ` FROM manga ORDER BY ` + orderClauses[domain.SortYearAsc])
}

func (s *SQLiteStore) GetFavorites() ([]domain.Manga, error) {
	return s.query(`SELECT ` + mangaColumns + ` FROM manga WHERE is_favorite = 1 ORDER BY ` +
		orderClauses[domain.SortYearAsc])
}

func (s *SQLiteStore) GetPage(sort domain.SortType, limit, offset int) ([]domain.Manga, error) {
	if limit <= 0 {
		return []domain.Manga{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	return s.query(`SELECT `+mangaColumns+` FROM manga ORDER BY `+orderClauses[sort.Normalize()]+
		` LIMIT ? OFFSET ?`, limit, offset)
}

func (s *SQLiteStore) GetByID(id string) (domain.Manga, bool, error) {
	m, err := scanManga(s.db.QueryRow(`SELECT `+mangaColumns+` FROM manga WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Manga{}, false, nil
	}
	if err != nil {
		return domain.Manga{}, false, err
	}
	return m, true, nil
}

func (s *SQLiteStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM manga`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Subscribe(ids ...string) (<-chan struct{}, func()) {
	return s.hub.Subscribe(ids...)
}

func (s *SQLiteStore) query(q string, args ...any) ([]domain.Manga, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Manga{}
	for rows.Next() {
		m, err := scanManga(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManga(row rowScanner) (domain.Manga, error) {
	var m domain.Manga
	err := row.Scan(&m.ID, &m.ImageURL, &m.Title, &m.Category, &m.Score, &m.Popularity,
		&m.PublishedAt, &m.IsFavorite, &m.IsRead)
	return m, err
}
