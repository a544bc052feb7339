package question

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/dailyq/internal/database"
	"github.com/hitoshi/dailyq/internal/model"
	"github.com/hitoshi/dailyq/internal/repository"
	"github.com/hitoshi/dailyq/internal/security"
)

// --- テスト用モック ---

type mockQuestionAPI struct {
	question   *model.Question
	getErr     error
	answers    map[string]model.Answer
	writes     int
	edits      int
	deletes    []string
	uploadName string
	uploadBody string
}

func newMockQuestionAPI() *mockQuestionAPI {
	return &mockQuestionAPI{answers: make(map[string]model.Answer)}
}

func (m *mockQuestionAPI) GetQuestion(_ context.Context, qid model.Date) (*model.Question, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.question == nil || m.question.ID != qid {
		return nil, nil
	}
	q := *m.question
	return &q, nil
}

func (m *mockQuestionAPI) GetAnswers(context.Context, model.Date) ([]model.Answer, error) {
	var out []model.Answer
	for _, a := range m.answers {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockQuestionAPI) GetAnswer(_ context.Context, _ model.Date, uid string) (*model.Answer, error) {
	a, ok := m.answers[uid]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *mockQuestionAPI) WriteAnswer(_ context.Context, qid model.Date, text, photo string) (*model.Answer, error) {
	m.writes++
	a := model.Answer{QID: qid, UID: "alice", Text: text, Photo: photo}
	m.answers["alice"] = a
	return &a, nil
}

func (m *mockQuestionAPI) EditAnswer(_ context.Context, qid model.Date, uid, text, photo string) (*model.Answer, error) {
	m.edits++
	a := model.Answer{QID: qid, UID: uid, Text: text, Photo: photo}
	m.answers[uid] = a
	return &a, nil
}

func (m *mockQuestionAPI) DeleteAnswer(_ context.Context, _ model.Date, uid string) error {
	m.deletes = append(m.deletes, uid)
	delete(m.answers, uid)
	return nil
}

func (m *mockQuestionAPI) UploadImage(_ context.Context, filename, _ string, image io.Reader) (*model.Image, error) {
	b, err := io.ReadAll(image)
	if err != nil {
		return nil, err
	}
	m.uploadName = filename
	m.uploadBody = string(b)
	return &model.Image{URL: "https://img.example.com/" + filename}, nil
}

func newTestRepo(t *testing.T) repository.QuestionCacheRepository {
	t.Helper()
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "question_test.db")
	if err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	db, dialect, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("Open に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repository.NewSQLQuestionCacheRepo(db, dialect)
}

func newTestService(t *testing.T, questionAPI *mockQuestionAPI) (*Service, repository.QuestionCacheRepository) {
	t.Helper()
	repo := newTestRepo(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(questionAPI, repo, security.NewContentSanitizer(), logger), repo
}

var qid = model.MustParseDate("2024-05-10")

func TestDetails_EmitsCacheThenNetwork(t *testing.T) {
	questionAPI := newMockQuestionAPI()
	questionAPI.question = &model.Question{ID: qid, Text: "<em>新しい</em>質問", AnswerCount: 5}
	svc, repo := newTestService(t, questionAPI)

	err := repo.WithTx(context.Background(), func(w repository.QuestionWriter) error {
		return w.UpsertAll(context.Background(), []model.Question{{ID: qid, Text: "古い質問", AnswerCount: 1}})
	})
	if err != nil {
		t.Fatalf("seed に失敗: %v", err)
	}

	var got []string
	err = svc.Details(context.Background(), qid, func(q *model.Question) {
		got = append(got, q.Text)
	})
	if err != nil {
		t.Fatalf("Details がエラーを返した: %v", err)
	}
	if len(got) != 2 || got[0] != "古い質問" || got[1] != "新しい質問" {
		t.Errorf("emit = %v", got)
	}

	cached, _ := svc.CachedQuestion(context.Background(), qid)
	if cached == nil || cached.Text != "新しい質問" || cached.AnswerCount != 5 {
		t.Errorf("キャッシュが更新されるべき: %+v", cached)
	}
}

func TestDetails_NetworkFailureAfterCache(t *testing.T) {
	questionAPI := newMockQuestionAPI()
	questionAPI.getErr = errors.New("timeout")
	svc, repo := newTestService(t, questionAPI)
	_ = repo.WithTx(context.Background(), func(w repository.QuestionWriter) error {
		return w.UpsertAll(context.Background(), []model.Question{{ID: qid, Text: "古い質問"}})
	})

	emitted := 0
	err := svc.Details(context.Background(), qid, func(*model.Question) { emitted++ })
	if err == nil {
		t.Fatal("取得失敗はエラーになるべき")
	}
	if emitted != 1 {
		t.Errorf("emit回数 = %d, キャッシュだけは返すべき", emitted)
	}
}

func TestFetchQuestion_NotFound(t *testing.T) {
	svc, _ := newTestService(t, newMockQuestionAPI())

	_, err := svc.FetchQuestion(context.Background(), qid)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeQuestionNotFound {
		t.Errorf("err = %v, want QUESTION_NOT_FOUND", err)
	}
}

func TestSaveAnswer_WritesThenEdits(t *testing.T) {
	questionAPI := newMockQuestionAPI()
	svc, _ := newTestService(t, questionAPI)
	ctx := context.Background()

	a, err := svc.SaveAnswer(ctx, qid, "alice", "夏", "")
	if err != nil {
		t.Fatalf("SaveAnswer がエラーを返した: %v", err)
	}
	if a.Text != "夏" || questionAPI.writes != 1 || questionAPI.edits != 0 {
		t.Errorf("1回目: answer = %+v, writes = %d, edits = %d", a, questionAPI.writes, questionAPI.edits)
	}

	a, err = svc.SaveAnswer(ctx, qid, "alice", "<b>冬</b>", "https://img.example.com/a.png")
	if err != nil {
		t.Fatalf("SaveAnswer がエラーを返した: %v", err)
	}
	if questionAPI.writes != 1 || questionAPI.edits != 1 {
		t.Errorf("2回目は編集になるべき: writes = %d, edits = %d", questionAPI.writes, questionAPI.edits)
	}
	if a.Text != "冬" || a.Photo != "https://img.example.com/a.png" {
		t.Errorf("answer = %+v", a)
	}
}

func TestSaveAnswer_EmptyIsRejected(t *testing.T) {
	questionAPI := newMockQuestionAPI()
	svc, _ := newTestService(t, questionAPI)

	_, err := svc.SaveAnswer(context.Background(), qid, "alice", "  ", "")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRequest {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
	if questionAPI.writes != 0 {
		t.Error("APIは呼ばれないはず")
	}
}

func TestAnswersAndDelete(t *testing.T) {
	questionAPI := newMockQuestionAPI()
	questionAPI.answers["bob"] = model.Answer{QID: qid, UID: "bob", Text: "<script>x()</script>春", Answerer: &model.User{ID: "bob", Name: "Bob"}}
	svc, _ := newTestService(t, questionAPI)
	ctx := context.Background()

	answers, err := svc.Answers(ctx, qid)
	if err != nil {
		t.Fatalf("Answers がエラーを返した: %v", err)
	}
	if len(answers) != 1 || answers[0].Text != "春" {
		t.Errorf("answers = %+v", answers)
	}

	mine, err := svc.Answer(ctx, qid, "alice")
	if err != nil || mine != nil {
		t.Errorf("未回答は nil: %v, %v", mine, err)
	}

	if err := svc.DeleteAnswer(ctx, qid, "bob"); err != nil {
		t.Fatalf("DeleteAnswer がエラーを返した: %v", err)
	}
	if len(questionAPI.deletes) != 1 || questionAPI.deletes[0] != "bob" {
		t.Errorf("deletes = %v", questionAPI.deletes)
	}
}

func TestUploadImage_ReturnsURL(t *testing.T) {
	questionAPI := newMockQuestionAPI()
	svc, _ := newTestService(t, questionAPI)

	u, err := svc.UploadImage(context.Background(), "photo.png", "image/png", strings.NewReader("PNGDATA"))
	if err != nil {
		t.Fatalf("UploadImage がエラーを返した: %v", err)
	}
	if u != "https://img.example.com/photo.png" {
		t.Errorf("URL = %q", u)
	}
	if questionAPI.uploadBody != "PNGDATA" {
		t.Errorf("body = %q", questionAPI.uploadBody)
	}
}
