package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/hitoshi/dailyq/internal/database"
)

// SQLKeyValueRepo はkvテーブルを使用したキー・バリューストア。
type SQLKeyValueRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLKeyValueRepo はSQLKeyValueRepoを生成する。
func NewSQLKeyValueRepo(db *sql.DB, dialect database.Dialect) *SQLKeyValueRepo {
	return &SQLKeyValueRepo{db: db, dialect: dialect}
}

var _ KeyValueRepository = (*SQLKeyValueRepo)(nil)

// Get はキーに対応する値を返す。存在しない場合はfalse。
func (r *SQLKeyValueRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		rebind(r.dialect, `SELECT value FROM kv WHERE key = ?`), key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kvの取得に失敗しました (key=%s): %w", key, err)
	}
	return value, true, nil
}

// SetAll は複数のキーを1つのトランザクションで書き込む。
func (r *SQLKeyValueRepo) SetAll(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	query := rebind(r.dialect,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`)

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, query, k, values[k]); err != nil {
				return fmt.Errorf("kvの書き込みに失敗しました (key=%s): %w", k, err)
			}
		}
		return nil
	})
}

// Delete は指定キーを1つのトランザクションで削除する。
func (r *SQLKeyValueRepo) Delete(ctx context.Context, keys ...string) error {
	query := rebind(r.dialect, `DELETE FROM kv WHERE key = ?`)
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, query, k); err != nil {
				return fmt.Errorf("kvの削除に失敗しました (key=%s): %w", k, err)
			}
		}
		return nil
	})
}
