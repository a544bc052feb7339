package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/dailyq/internal/database"
	"github.com/hitoshi/dailyq/internal/model"
)

// SQLUserCacheRepo はSQLite/PostgreSQLを使用したユーザープロフィールキャッシュリポジトリ。
type SQLUserCacheRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLUserCacheRepo はSQLUserCacheRepoを生成する。
func NewSQLUserCacheRepo(db *sql.DB, dialect database.Dialect) *SQLUserCacheRepo {
	return &SQLUserCacheRepo{db: db, dialect: dialect}
}

var (
	_ UserCacheRepository = (*SQLUserCacheRepo)(nil)
	_ UserCachePruner     = (*SQLUserCacheRepo)(nil)
)

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *SQLUserCacheRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var name, description, photo sql.NullString
	var updatedAt sql.NullTime
	var following bool

	err := r.db.QueryRowContext(ctx,
		rebind(r.dialect,
			`SELECT id, name, description, photo, answer_count, follower_count,
			        following_count, is_following, updated_at
			 FROM users WHERE id = ?`),
		id,
	).Scan(
		&user.ID, &name, &description, &photo, &user.AnswerCount, &user.FollowerCount,
		&user.FollowingCount, &following, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーキャッシュの取得に失敗しました: %w", err)
	}

	user.Name = nullStringValue(name)
	user.Description = nullStringValue(description)
	user.Photo = nullStringValue(photo)
	user.IsFollowing = &following
	user.UpdatedAt = nullTimeValue(updatedAt)
	return user, nil
}

// Insert はユーザーを新規に保存する。
func (r *SQLUserCacheRepo) Insert(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		rebind(r.dialect,
			`INSERT INTO users (id, name, description, photo, answer_count, follower_count,
			                    following_count, is_following, updated_at, cached_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		user.ID, nullString(user.Name), nullString(user.Description), nullString(user.Photo),
		user.AnswerCount, user.FollowerCount, user.FollowingCount, user.Following(), nullTime(user.UpdatedAt),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("ユーザーキャッシュの保存に失敗しました: %w", err)
	}
	return nil
}

// Update は既存ユーザーの全カラムを更新する。
func (r *SQLUserCacheRepo) Update(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		rebind(r.dialect,
			`UPDATE users SET name = ?, description = ?, photo = ?, answer_count = ?,
			        follower_count = ?, following_count = ?, is_following = ?, updated_at = ?,
			        cached_at = ?
			 WHERE id = ?`),
		nullString(user.Name), nullString(user.Description), nullString(user.Photo),
		user.AnswerCount, user.FollowerCount, user.FollowingCount, user.Following(), nullTime(user.UpdatedAt),
		time.Now().Unix(), user.ID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーキャッシュの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteCachedBefore はcutoffより前にキャッシュされたユーザーを削除し、削除件数を返す。
func (r *SQLUserCacheRepo) DeleteCachedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		rebind(r.dialect, `DELETE FROM users WHERE cached_at < ?`),
		cutoff.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("ユーザーキャッシュの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}
