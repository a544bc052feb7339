package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hitoshi/dailyq/internal/database"
	"github.com/hitoshi/dailyq/internal/model"
)

// newTestDB はマイグレーション済みの一時SQLiteデータベースを返す。
func newTestDB(t *testing.T) (*sql.DB, database.Dialect) {
	t.Helper()
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "repo_test.db")
	if err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	db, dialect, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("Open に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, dialect
}

func question(id, text string, answers int) model.Question {
	return model.Question{
		ID:          model.MustParseDate(id),
		Text:        text,
		AnswerCount: answers,
		UpdatedAt:   time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
		CreatedAt:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func seedQuestions(t *testing.T, repo *SQLQuestionCacheRepo, qs ...model.Question) {
	t.Helper()
	err := repo.WithTx(context.Background(), func(w QuestionWriter) error {
		return w.UpsertAll(context.Background(), qs)
	})
	if err != nil {
		t.Fatalf("seed に失敗: %v", err)
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT * FROM kv WHERE key = ? AND value = ?`
	if got := rebind(database.DialectSQLite, q); got != q {
		t.Errorf("sqlite rebind = %q, want unchanged", got)
	}
	want := `SELECT * FROM kv WHERE key = $1 AND value = $2`
	if got := rebind(database.DialectPostgres, q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestSQLQuestionCacheRepo_ListIsDescendingByDate(t *testing.T) {
	db, dialect := newTestDB(t)
	repo := NewSQLQuestionCacheRepo(db, dialect)
	ctx := context.Background()

	seedQuestions(t, repo,
		question("2024-05-08", "c", 0),
		question("2024-05-10", "a", 0),
		question("2024-05-09", "b", 0),
	)

	got, err := repo.List(ctx, 0, 10)
	if err != nil {
		t.Fatalf("List がエラーを返した: %v", err)
	}
	want := []string{"2024-05-10", "2024-05-09", "2024-05-08"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, q := range got {
		if q.ID.String() != want[i] {
			t.Errorf("List[%d] = %s, want %s", i, q.ID, want[i])
		}
	}

	page, err := repo.List(ctx, 1, 1)
	if err != nil {
		t.Fatalf("List がエラーを返した: %v", err)
	}
	if len(page) != 1 || page[0].ID.String() != "2024-05-09" {
		t.Errorf("List(1,1) = %v, want [2024-05-09]", page)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count がエラーを返した: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestSQLQuestionCacheRepo_UpsertReplacesAllFields(t *testing.T) {
	db, dialect := newTestDB(t)
	repo := NewSQLQuestionCacheRepo(db, dialect)
	ctx := context.Background()

	seedQuestions(t, repo, question("2024-05-10", "ローカルの古い本文", 1))

	fresh := question("2024-05-10", "サーバーの新しい本文", 7)
	fresh.UpdatedAt = time.Date(2024, 5, 11, 12, 0, 0, 0, time.UTC)
	seedQuestions(t, repo, fresh)

	got, err := repo.FindByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("FindByID がエラーを返した: %v", err)
	}
	if got == nil {
		t.Fatal("質問が見つからない")
	}
	if got.Text != fresh.Text {
		t.Errorf("Text = %q, want %q", got.Text, fresh.Text)
	}
	if got.AnswerCount != 7 {
		t.Errorf("AnswerCount = %d, want 7", got.AnswerCount)
	}
	if !got.UpdatedAt.Equal(fresh.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, fresh.UpdatedAt)
	}

	n, _ := repo.Count(ctx)
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestSQLQuestionCacheRepo_FindByID_NotFoundReturnsNil(t *testing.T) {
	db, dialect := newTestDB(t)
	repo := NewSQLQuestionCacheRepo(db, dialect)

	got, err := repo.FindByID(context.Background(), model.MustParseDate("2024-01-01"))
	if err != nil {
		t.Fatalf("FindByID がエラーを返した: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestSQLQuestionCacheRepo_WithTx_RollsBackOnError(t *testing.T) {
	db, dialect := newTestDB(t)
	repo := NewSQLQuestionCacheRepo(db, dialect)
	ctx := context.Background()

	seedQuestions(t, repo, question("2024-05-10", "a", 0), question("2024-05-09", "b", 0))

	injected := errors.New("injected failure")
	err := repo.WithTx(ctx, func(w QuestionWriter) error {
		if err := w.DeleteAll(ctx); err != nil {
			return err
		}
		return injected
	})
	if !errors.Is(err, injected) {
		t.Fatalf("err = %v, want injected failure", err)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count がエラーを返した: %v", err)
	}
	if n != 2 {
		t.Errorf("ロールバック後の件数 = %d, want 2", n)
	}
}

func TestSQLUserCacheRepo_InsertFindUpdate(t *testing.T) {
	db, dialect := newTestDB(t)
	repo := NewSQLUserCacheRepo(db, dialect)
	ctx := context.Background()

	following := true
	user := &model.User{
		ID:             "alice",
		Name:           "Alice",
		Description:    "hello",
		AnswerCount:    3,
		FollowerCount:  2,
		FollowingCount: 1,
		IsFollowing:    &following,
	}
	if err := repo.Insert(ctx, user); err != nil {
		t.Fatalf("Insert がエラーを返した: %v", err)
	}

	got, err := repo.FindByID(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByID がエラーを返した: %v", err)
	}
	if got == nil || got.Name != "Alice" || !got.Following() || got.Photo != "" {
		t.Fatalf("FindByID = %+v", got)
	}

	user.Name = "Alice B."
	user.IsFollowing = nil
	if err := repo.Update(ctx, user); err != nil {
		t.Fatalf("Update がエラーを返した: %v", err)
	}
	got, _ = repo.FindByID(ctx, "alice")
	if got.Name != "Alice B." {
		t.Errorf("Name = %q, want %q", got.Name, "Alice B.")
	}
	if got.Following() {
		t.Error("IsFollowing should be false after update")
	}

	missing, err := repo.FindByID(ctx, "nobody")
	if err != nil || missing != nil {
		t.Errorf("FindByID(nobody) = %+v, %v; want nil, nil", missing, err)
	}
}

func TestSQLUserCacheRepo_DeleteCachedBefore(t *testing.T) {
	db, dialect := newTestDB(t)
	repo := NewSQLUserCacheRepo(db, dialect)
	ctx := context.Background()

	if err := repo.Insert(ctx, &model.User{ID: "alice", Name: "Alice"}); err != nil {
		t.Fatalf("Insert がエラーを返した: %v", err)
	}

	n, err := repo.DeleteCachedBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("DeleteCachedBefore(過去) = %d, %v; want 0", n, err)
	}

	n, err = repo.DeleteCachedBefore(ctx, time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("DeleteCachedBefore(未来) = %d, %v; want 1", n, err)
	}
	if got, _ := repo.FindByID(ctx, "alice"); got != nil {
		t.Errorf("削除後も残っている: %+v", got)
	}
}

func TestSQLKeyValueRepo_SetGetDelete(t *testing.T) {
	db, dialect := newTestDB(t)
	repo := NewSQLKeyValueRepo(db, dialect)
	ctx := context.Background()

	if _, ok, err := repo.Get(ctx, "access_token"); err != nil || ok {
		t.Fatalf("Get(未設定) = ok=%v err=%v", ok, err)
	}

	if err := repo.SetAll(ctx, map[string]string{"access_token": "a1", "refresh_token": "r1"}); err != nil {
		t.Fatalf("SetAll がエラーを返した: %v", err)
	}
	if err := repo.SetAll(ctx, map[string]string{"access_token": "a2"}); err != nil {
		t.Fatalf("SetAll(上書き) がエラーを返した: %v", err)
	}

	v, ok, err := repo.Get(ctx, "access_token")
	if err != nil || !ok || v != "a2" {
		t.Errorf("Get(access_token) = %q, %v, %v; want a2", v, ok, err)
	}
	v, ok, _ = repo.Get(ctx, "refresh_token")
	if !ok || v != "r1" {
		t.Errorf("Get(refresh_token) = %q, %v; want r1", v, ok)
	}

	if err := repo.Delete(ctx, "access_token", "refresh_token"); err != nil {
		t.Fatalf("Delete がエラーを返した: %v", err)
	}
	if _, ok, _ := repo.Get(ctx, "access_token"); ok {
		t.Error("Delete 後もaccess_tokenが残っている")
	}
}
