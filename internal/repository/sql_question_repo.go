package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/dailyq/internal/database"
	"github.com/hitoshi/dailyq/internal/model"
)

// SQLQuestionCacheRepo はSQLite/PostgreSQLを使用した質問キャッシュリポジトリ。
type SQLQuestionCacheRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLQuestionCacheRepo はSQLQuestionCacheRepoを生成する。
func NewSQLQuestionCacheRepo(db *sql.DB, dialect database.Dialect) *SQLQuestionCacheRepo {
	return &SQLQuestionCacheRepo{db: db, dialect: dialect}
}

var _ QuestionCacheRepository = (*SQLQuestionCacheRepo)(nil)

const questionColumns = `id, text, answer_count, updated_at, created_at`

// FindByID は指定日の質問を取得する。見つからない場合はnilを返す。
func (r *SQLQuestionCacheRepo) FindByID(ctx context.Context, id model.Date) (*model.Question, error) {
	row := r.db.QueryRowContext(ctx,
		rebind(r.dialect, `SELECT `+questionColumns+` FROM questions WHERE id = ?`),
		id,
	)
	q, err := scanQuestion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("質問キャッシュの取得に失敗しました: %w", err)
	}
	return q, nil
}

// List は日付の降順でoffset件目からlimit件を返す。
func (r *SQLQuestionCacheRepo) List(ctx context.Context, offset, limit int) ([]model.Question, error) {
	rows, err := r.db.QueryContext(ctx,
		rebind(r.dialect, `SELECT `+questionColumns+` FROM questions ORDER BY id DESC LIMIT ? OFFSET ?`),
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("質問キャッシュの一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("質問キャッシュの読み込みに失敗しました: %w", err)
		}
		questions = append(questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("質問キャッシュの一覧取得に失敗しました: %w", err)
	}
	return questions, nil
}

// Count はキャッシュ済みの質問数を返す。
func (r *SQLQuestionCacheRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("質問キャッシュの件数取得に失敗しました: %w", err)
	}
	return n, nil
}

// WithTx はfnを1つのトランザクション内で実行する。
// fnの実行中は*sql.DBを直接使わないこと（SQLiteでは接続が1本のため）。
func (r *SQLQuestionCacheRepo) WithTx(ctx context.Context, fn func(w QuestionWriter) error) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&questionWriter{q: tx, dialect: r.dialect})
	})
}

// questionWriter はトランザクションに束縛されたQuestionWriter。
type questionWriter struct {
	q       queryer
	dialect database.Dialect
}

// UpsertAll は主キーが同じ既存行の全カラムを取得した値で置き換える。
func (w *questionWriter) UpsertAll(ctx context.Context, questions []model.Question) error {
	query := rebind(w.dialect,
		`INSERT INTO questions (`+questionColumns+`)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     text = excluded.text,
		     answer_count = excluded.answer_count,
		     updated_at = excluded.updated_at,
		     created_at = excluded.created_at`)

	for _, q := range questions {
		if _, err := w.q.ExecContext(ctx, query,
			q.ID, q.Text, q.AnswerCount, nullTime(q.UpdatedAt), nullTime(q.CreatedAt),
		); err != nil {
			return fmt.Errorf("質問キャッシュのUPSERTに失敗しました (id=%s): %w", q.ID, err)
		}
	}
	return nil
}

// DeleteAll は質問キャッシュを空にする。
func (w *questionWriter) DeleteAll(ctx context.Context) error {
	if _, err := w.q.ExecContext(ctx, `DELETE FROM questions`); err != nil {
		return fmt.Errorf("質問キャッシュの削除に失敗しました: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(s rowScanner) (*model.Question, error) {
	q := &model.Question{}
	var updatedAt, createdAt sql.NullTime
	if err := s.Scan(&q.ID, &q.Text, &q.AnswerCount, &updatedAt, &createdAt); err != nil {
		return nil, err
	}
	q.UpdatedAt = nullTimeValue(updatedAt)
	q.CreatedAt = nullTimeValue(createdAt)
	return q, nil
}
