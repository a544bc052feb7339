// Package repository はローカルキャッシュへのデータアクセスを提供する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/dailyq/internal/model"
)

// QuestionCacheRepository は質問キャッシュ（タイムラインのローカルテーブル）のデータアクセスを定義する。
// 読み取りは日付の降順。書き込みはWithTxで区切ったトランザクション内でのみ行う。
type QuestionCacheRepository interface {
	// FindByID は指定日の質問を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id model.Date) (*model.Question, error)
	// List は日付の降順でoffset件目からlimit件を返す。
	List(ctx context.Context, offset, limit int) ([]model.Question, error)
	// Count はキャッシュ済みの質問数を返す。
	Count(ctx context.Context) (int, error)
	// WithTx はfnを1つのトランザクション内で実行する。fnがエラーを返した場合はロールバックする。
	WithTx(ctx context.Context, fn func(w QuestionWriter) error) error
}

// QuestionWriter はトランザクション内で使用する質問キャッシュの書き込み操作。
type QuestionWriter interface {
	// UpsertAll は主キーが同じ既存行をサーバーの値で完全に置き換える。
	UpsertAll(ctx context.Context, questions []model.Question) error
	// DeleteAll はキャッシュを空にする。
	DeleteAll(ctx context.Context) error
}

// UserCacheRepository はユーザープロフィールキャッシュのデータアクセスを定義する。
type UserCacheRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	Insert(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
}

// UserCachePruner は古くなったユーザーキャッシュの削除。
type UserCachePruner interface {
	// DeleteCachedBefore はcutoffより前に保存・更新された行を削除し、削除件数を返す。
	DeleteCachedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// KeyValueRepository はトークンなどの永続化に使う文字列キー・バリューストア。
type KeyValueRepository interface {
	// Get はキーに対応する値を返す。存在しない場合はfalse。
	Get(ctx context.Context, key string) (string, bool, error)
	// SetAll は複数のキーを1つのトランザクションで書き込む。
	SetAll(ctx context.Context, values map[string]string) error
	// Delete は指定キーを1つのトランザクションで削除する。
	Delete(ctx context.Context, keys ...string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// queryer は*sql.DBと*sql.Txの共通部分。
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
