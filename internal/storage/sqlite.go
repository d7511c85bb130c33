package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tazhate/dombot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores the document in normalized tables. Save rewrites every table
// inside a single transaction; position columns keep slice and user order.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS owners (
			actor_id TEXT PRIMARY KEY,
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS admins (
			actor_id TEXT PRIMARY KEY,
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			actor_id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			coins INTEGER NOT NULL DEFAULT 0 CHECK (coins >= 0),
			message_count INTEGER NOT NULL DEFAULT 0,
			last_daily_claim INTEGER NOT NULL DEFAULT 0,
			joined_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_position ON users(position)`,
		`CREATE TABLE IF NOT EXISTS shop (
			id INTEGER PRIMARY KEY,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			price INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context) (*domain.Document, bool, error) {
	var initialized string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'initialized'`).Scan(&initialized)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read meta: %w", err)
	}

	doc := &domain.Document{Users: domain.NewUserTable()}

	if doc.Owners, err = s.loadIDs(ctx, "owners"); err != nil {
		return nil, false, err
	}
	if doc.Admins, err = s.loadIDs(ctx, "admins"); err != nil {
		return nil, false, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT actor_id, coins, message_count, last_daily_claim, joined_at FROM users ORDER BY position`)
	if err != nil {
		return nil, false, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		u := &domain.User{}
		if err := rows.Scan(&id, &u.Coins, &u.MessageCount, &u.LastDailyClaim, &u.JoinedAt); err != nil {
			return nil, false, fmt.Errorf("%w: users: %v", ErrDecodeFailed, err)
		}
		doc.Users.Put(id, u)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate users: %w", err)
	}

	shopRows, err := s.db.QueryContext(ctx, `SELECT id, name, price FROM shop ORDER BY position`)
	if err != nil {
		return nil, false, fmt.Errorf("query shop: %w", err)
	}
	defer shopRows.Close()
	doc.Shop = []domain.ShopItem{}
	for shopRows.Next() {
		var item domain.ShopItem
		if err := shopRows.Scan(&item.ID, &item.Name, &item.Price); err != nil {
			return nil, false, fmt.Errorf("%w: shop: %v", ErrDecodeFailed, err)
		}
		doc.Shop = append(doc.Shop, item)
	}
	if err := shopRows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate shop: %w", err)
	}

	return doc, true, nil
}

func (s *SQLite) loadIDs(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT actor_id FROM `+table+` ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) Save(ctx context.Context, doc *domain.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"owners", "admins", "users", "shop"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := saveIDs(ctx, tx, "owners", doc.Owners); err != nil {
		return err
	}
	if err := saveIDs(ctx, tx, "admins", doc.Admins); err != nil {
		return err
	}

	userStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO users (actor_id, position, coins, message_count, last_daily_claim, joined_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare users: %w", err)
	}
	defer userStmt.Close()

	pos := 0
	doc.Users.Each(func(id string, u *domain.User) bool {
		_, err = userStmt.ExecContext(ctx, id, pos, u.Coins, u.MessageCount, u.LastDailyClaim, u.JoinedAt)
		pos++
		return err == nil
	})
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	for i, item := range doc.Shop {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO shop (id, position, name, price) VALUES (?, ?, ?, ?)`,
			item.ID, i, item.Name, item.Price,
		); err != nil {
			return fmt.Errorf("insert shop item %d: %w", item.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('initialized', '1')
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
	); err != nil {
		return fmt.Errorf("mark initialized: %w", err)
	}

	return tx.Commit()
}

func saveIDs(ctx context.Context, tx *sql.Tx, table string, ids []string) error {
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT INTO `+table+` (actor_id, position) VALUES (?, ?)`, id, i); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}
