package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect はキャッシュDBのSQL方言を表す。
type Dialect string

const (
	// DialectSQLite は端末ローカルのSQLiteファイル（既定）。
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres はPostgreSQL。
	DialectPostgres Dialect = "postgres"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// DialectOf はデータベースURLのスキームから方言を判定する。
func DialectOf(databaseURL string) (Dialect, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"), strings.HasPrefix(databaseURL, "sqlite3://"):
		return DialectSQLite, nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database URL scheme: %q", databaseURL)
	}
}

// SQLitePath はsqlite:// URLからファイルパス部分を取り出す。
func SQLitePath(databaseURL string) string {
	p := strings.TrimPrefix(databaseURL, "sqlite3://")
	p = strings.TrimPrefix(p, "sqlite://")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

// Open はデータベース接続を開く。
// sqlite:// は modernc.org/sqlite、postgres:// は lib/pq を使用する。
// SQLiteの場合は親ディレクトリを作成し、接続数を1に制限する。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(databaseURL string) (*sql.DB, Dialect, error) {
	dialect, err := DialectOf(databaseURL)
	if err != nil {
		return nil, "", err
	}

	switch dialect {
	case DialectSQLite:
		path := SQLitePath(databaseURL)
		if path == "" {
			return nil, "", fmt.Errorf("sqlite database path is empty")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, "", fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err := sql.Open("sqlite", path+"?"+sqlitePragmas)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(1)
		return db, dialect, nil
	default:
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open database: %w", err)
		}
		return db, dialect, nil
	}
}
