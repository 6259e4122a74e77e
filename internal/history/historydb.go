package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Hara602/liteDefender/internal/model"
	_ "modernc.org/sqlite"
)

// Store 检测结论历史 (sqlite)
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS verdicts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL,
	kind TEXT NOT NULL,
	message TEXT,
	pattern TEXT,
	fingerprint TEXT,
	algorithm TEXT,
	content_type TEXT,
	scanned_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verdicts_scanned_at ON verdicts(scanned_at);
`

// Open 打开数据库并初始化表结构
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// 监控 goroutine 和前台命令可能同时写入
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record 写入一条检测结论
func (s *Store) Record(ctx context.Context, v model.Verdict) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verdicts(path, kind, message, pattern, fingerprint, algorithm, content_type, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Path, v.Kind.String(), v.Message, v.Pattern, v.Fingerprint, v.Algorithm, v.ContentType,
		v.ScannedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert verdict: %w", err)
	}
	return nil
}

// Entry 历史记录中的一行
type Entry struct {
	ID      int64
	Verdict model.Verdict
}

// Recent 最近的 limit 条记录，新的在前；threatsOnly 只返回命中记录
func (s *Store) Recent(ctx context.Context, limit int, threatsOnly bool) ([]Entry, error) {
	query := `SELECT id, path, kind, message, pattern, fingerprint, algorithm, content_type, scanned_at FROM verdicts`
	if threatsOnly {
		query += ` WHERE kind != 'clean'`
	}
	query += ` ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			kind      string
			scannedAt string
		)
		v := &e.Verdict
		if err := rows.Scan(&e.ID, &v.Path, &kind, &v.Message, &v.Pattern, &v.Fingerprint, &v.Algorithm, &v.ContentType, &scannedAt); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		v.Kind = parseKind(kind)
		if t, err := time.Parse(time.RFC3339Nano, scannedAt); err == nil {
			v.ScannedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func parseKind(s string) model.VerdictKind {
	switch s {
	case model.SignatureMatch.String():
		return model.SignatureMatch
	case model.PatternMatch.String():
		return model.PatternMatch
	default:
		return model.Clean
	}
}
