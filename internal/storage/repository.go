package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"homeinspect/internal/core"
	"homeinspect/internal/identity"
	"homeinspect/internal/metadata"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores upload records, users and sessions in one file.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ metadata.Store = (*SQLiteRepository)(nil)
	_ identity.Store = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness check.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Insert implements metadata.Store. IDs are the row ids as decimal strings.
func (r *SQLiteRepository) Insert(ctx context.Context, rec core.UploadRecord) (core.UploadRecord, error) {
	var lat, lng sql.NullFloat64
	if rec.Location != nil {
		lat = sql.NullFloat64{Float64: rec.Location.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: rec.Location.Longitude, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO uploads (owner_id, item_type, storage_key, public_url, content_type, latitude, longitude, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OwnerID, string(rec.ItemType), rec.StorageKey, rec.PublicURL, rec.ContentType,
		lat, lng, formatTime(rec.Timestamp))
	if err != nil {
		return core.UploadRecord{}, fmt.Errorf("insert upload: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.UploadRecord{}, fmt.Errorf("read upload id: %w", err)
	}
	rec.ID = strconv.FormatInt(id, 10)

	slog.InfoContext(ctx, "Upload record saved to SQLite",
		"id", rec.ID,
		"owner_id", rec.OwnerID,
		"item_type", rec.ItemType)

	return rec, nil
}

// List implements metadata.Store, returning rows in insertion order.
func (r *SQLiteRepository) List(ctx context.Context, q metadata.Query) ([]core.UploadRecord, error) {
	var (
		where = []string{"owner_id = ?"}
		args  = []any{q.OwnerID}
	)
	if !q.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, formatTime(q.To))
	}
	if q.ItemType != "" {
		where = append(where, "item_type = ?")
		args = append(args, string(q.ItemType))
	}

	rows, err := r.db.QueryContext(ctx, uploadColumns+" WHERE "+strings.Join(where, " AND ")+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var out []core.UploadRecord
	for rows.Next() {
		rec, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, ownerID, id string) (core.UploadRecord, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return core.UploadRecord{}, metadata.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, uploadColumns+" WHERE owner_id = ? AND id = ?", ownerID, rowID)
	rec, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UploadRecord{}, metadata.ErrNotFound
	}
	return rec, err
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return metadata.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM uploads WHERE owner_id = ? AND id = ?", ownerID, rowID)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	if n == 0 {
		return metadata.ErrNotFound
	}
	slog.InfoContext(ctx, "Upload record deleted from SQLite", "id", id, "owner_id", ownerID)
	return nil
}

const uploadColumns = `SELECT id, owner_id, item_type, storage_key, public_url, content_type, latitude, longitude, timestamp FROM uploads`

type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(s scanner) (core.UploadRecord, error) {
	var (
		rec      core.UploadRecord
		id       int64
		item     string
		lat, lng sql.NullFloat64
		ts       string
	)
	if err := s.Scan(&id, &rec.OwnerID, &item, &rec.StorageKey, &rec.PublicURL, &rec.ContentType, &lat, &lng, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan upload: %w", err)
	}
	t, err := time.Parse(metadata.TimestampLayout, ts)
	if err != nil {
		return rec, fmt.Errorf("parse upload timestamp %q: %w", ts, err)
	}
	rec.ID = strconv.FormatInt(id, 10)
	rec.ItemType = core.ChecklistItem(item)
	rec.Timestamp = t
	if lat.Valid && lng.Valid {
		rec.Location = &core.Location{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	return rec, nil
}

// CreateUser implements identity.Store.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u identity.User) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.Email, u.PasswordHash, string(u.Role), formatTime(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return identity.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (identity.User, error) {
	var (
		u       identity.User
		role    string
		created string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, role, created_at FROM users WHERE email = ?", email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.User{}, identity.ErrUserNotFound
	}
	if err != nil {
		return identity.User{}, fmt.Errorf("select user: %w", err)
	}
	u.Role = core.Role(role)
	u.CreatedAt, _ = time.Parse(metadata.TimestampLayout, created)
	return u, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s identity.SessionRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, role, expires_at) VALUES (?, ?, ?, ?)",
		s.Token, s.UserID, string(s.Role), formatTime(s.ExpiresAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Session(ctx context.Context, token string) (identity.SessionRecord, error) {
	var (
		s       identity.SessionRecord
		role    string
		expires string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT token, user_id, role, expires_at FROM sessions WHERE token = ?", token).
		Scan(&s.Token, &s.UserID, &role, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.SessionRecord{}, identity.ErrNoSession
	}
	if err != nil {
		return identity.SessionRecord{}, fmt.Errorf("select session: %w", err)
	}
	s.Role = core.Role(role)
	if s.ExpiresAt, err = time.Parse(metadata.TimestampLayout, expires); err != nil {
		return identity.SessionRecord{}, fmt.Errorf("parse session expiry: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return identity.ErrNoSession
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(metadata.TimestampLayout)
}
