package profile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/dailyq/internal/model"
	"github.com/hitoshi/dailyq/internal/paging"
	"github.com/hitoshi/dailyq/internal/security"
)

// --- テスト用モック ---

type mockUserAPI struct {
	user        *model.User
	getErr      error
	follows     []string
	unfollows   []string
	answers     []model.QuestionAndAnswer
	answerCalls []*model.Date
}

func (m *mockUserAPI) GetUser(_ context.Context, uid string) (*model.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.user == nil || m.user.ID != uid {
		return nil, nil
	}
	u := *m.user
	return &u, nil
}

func (m *mockUserAPI) Follow(_ context.Context, uid string) error {
	m.follows = append(m.follows, uid)
	following := true
	m.user.IsFollowing = &following
	m.user.FollowerCount++
	return nil
}

func (m *mockUserAPI) Unfollow(_ context.Context, uid string) error {
	m.unfollows = append(m.unfollows, uid)
	following := false
	m.user.IsFollowing = &following
	m.user.FollowerCount--
	return nil
}

func (m *mockUserAPI) GetUserAnswers(_ context.Context, _ string, from *model.Date) ([]model.QuestionAndAnswer, error) {
	m.answerCalls = append(m.answerCalls, from)
	var out []model.QuestionAndAnswer
	for _, qa := range m.answers {
		if from == nil || !qa.Question.ID.After(*from) {
			out = append(out, qa)
		}
		if len(out) == 2 {
			break
		}
	}
	return out, nil
}

type mockUserRepo struct {
	rows    map[string]model.User
	inserts int
	updates int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{rows: make(map[string]model.User)}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *mockUserRepo) Insert(_ context.Context, user *model.User) error {
	m.inserts++
	m.rows[user.ID] = *user
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.updates++
	m.rows[user.ID] = *user
	return nil
}

func testUser() *model.User {
	return &model.User{
		ID:            "alice",
		Name:          "<b>Alice</b>",
		Description:   "よろしく",
		AnswerCount:   3,
		FollowerCount: 10,
		UpdatedAt:     time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
	}
}

func newTestService(userAPI *mockUserAPI, repo *mockUserRepo) *Service {
	clock := paging.Clock{
		Now:      func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) },
		Location: time.UTC,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(userAPI, repo, security.NewContentSanitizer(), Config{PageSize: 2, Clock: clock}, logger)
}

func TestFetchUser_InsertsWhenAbsent(t *testing.T) {
	userAPI := &mockUserAPI{user: testUser()}
	repo := newMockUserRepo()
	svc := newTestService(userAPI, repo)

	cached, err := svc.CachedUser(context.Background(), "alice")
	if err != nil || cached != nil {
		t.Fatalf("CachedUser = %v, %v, want nil", cached, err)
	}

	user, err := svc.FetchUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FetchUser がエラーを返した: %v", err)
	}
	if user.Name != "Alice" {
		t.Errorf("Name = %q, サニタイズされるべき", user.Name)
	}
	if repo.inserts != 1 || repo.updates != 0 {
		t.Errorf("inserts = %d, updates = %d, want 1, 0", repo.inserts, repo.updates)
	}

	cached, _ = svc.CachedUser(context.Background(), "alice")
	if cached == nil || cached.Name != "Alice" {
		t.Errorf("CachedUser = %+v", cached)
	}
}

func TestFetchUser_UpdatesOnlyWhenChanged(t *testing.T) {
	userAPI := &mockUserAPI{user: testUser()}
	repo := newMockUserRepo()
	svc := newTestService(userAPI, repo)
	ctx := context.Background()

	if _, err := svc.FetchUser(ctx, "alice"); err != nil {
		t.Fatalf("FetchUser がエラーを返した: %v", err)
	}
	if _, err := svc.FetchUser(ctx, "alice"); err != nil {
		t.Fatalf("FetchUser がエラーを返した: %v", err)
	}
	if repo.updates != 0 {
		t.Errorf("内容が同じなら更新しない: updates = %d", repo.updates)
	}

	userAPI.user.AnswerCount = 4
	if _, err := svc.FetchUser(ctx, "alice"); err != nil {
		t.Fatalf("FetchUser がエラーを返した: %v", err)
	}
	if repo.updates != 1 {
		t.Errorf("updates = %d, want 1", repo.updates)
	}
	if repo.rows["alice"].AnswerCount != 4 {
		t.Errorf("AnswerCount = %d, want 4", repo.rows["alice"].AnswerCount)
	}
}

func TestFetchUser_NotFound(t *testing.T) {
	svc := newTestService(&mockUserAPI{user: testUser()}, newMockUserRepo())

	_, err := svc.FetchUser(context.Background(), "nobody")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("err = %v, want USER_NOT_FOUND", err)
	}
}

func TestFetchUser_APIErrorKeepsCache(t *testing.T) {
	repo := newMockUserRepo()
	repo.rows["alice"] = *testUser()
	svc := newTestService(&mockUserAPI{getErr: errors.New("timeout")}, repo)

	if _, err := svc.FetchUser(context.Background(), "alice"); err == nil {
		t.Fatal("エラーが返されるべき")
	}
	if cached, _ := svc.CachedUser(context.Background(), "alice"); cached == nil {
		t.Error("キャッシュは残るべき")
	}
}

func TestFollowAndUnfollow(t *testing.T) {
	userAPI := &mockUserAPI{user: testUser()}
	repo := newMockUserRepo()
	svc := newTestService(userAPI, repo)
	ctx := context.Background()

	user, err := svc.Follow(ctx, "alice")
	if err != nil {
		t.Fatalf("Follow がエラーを返した: %v", err)
	}
	if !user.Following() || user.FollowerCount != 11 {
		t.Errorf("Follow 後 = %+v", user)
	}
	if row := repo.rows["alice"]; !row.Following() {
		t.Error("キャッシュにフォロー状態が反映されるべき")
	}

	user, err = svc.Unfollow(ctx, "alice")
	if err != nil {
		t.Fatalf("Unfollow がエラーを返した: %v", err)
	}
	if user.Following() || user.FollowerCount != 10 {
		t.Errorf("Unfollow 後 = %+v", user)
	}
	if len(userAPI.follows) != 1 || len(userAPI.unfollows) != 1 {
		t.Errorf("follows = %v, unfollows = %v", userAPI.follows, userAPI.unfollows)
	}
}

func qa(date, text string) model.QuestionAndAnswer {
	d := model.MustParseDate(date)
	return model.QuestionAndAnswer{
		Question: model.Question{ID: d, Text: "質問 " + date},
		Answer:   &model.Answer{QID: d, UID: "alice", Text: text},
	}
}

func TestAnswersPager_WalksBackwardUntilEnd(t *testing.T) {
	userAPI := &mockUserAPI{answers: []model.QuestionAndAnswer{
		qa("2024-05-10", "<p>夏</p>"), qa("2024-05-07", "冬"), qa("2024-05-01", "春"),
	}}
	svc := newTestService(userAPI, newMockUserRepo())
	p := svc.NewAnswersPager("alice")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start がエラーを返した: %v", err)
	}
	items := p.Snapshot().Items
	if len(items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(items))
	}
	if items[0].Answer.Text != "夏" {
		t.Errorf("Answer.Text = %q, サニタイズされるべき", items[0].Answer.Text)
	}
	if got := userAPI.answerCalls[0].String(); got != "2024-05-10" {
		t.Errorf("初回 from_date = %s, want 2024-05-10", got)
	}

	if err := p.Append(ctx); err != nil {
		t.Fatalf("Append がエラーを返した: %v", err)
	}
	if got := userAPI.answerCalls[1].String(); got != "2024-05-06" {
		t.Errorf("from_date = %s, want 2024-05-06", got)
	}
	if err := p.Append(ctx); err != nil {
		t.Fatalf("Append がエラーを返した: %v", err)
	}
	snap := p.Snapshot()
	if len(snap.Items) != 3 || !snap.States.Append.EndOfPaginationReached {
		t.Errorf("Items = %d, end = %v", len(snap.Items), snap.States.Append.EndOfPaginationReached)
	}
}

func TestAnswersPage_UsesCursor(t *testing.T) {
	userAPI := &mockUserAPI{answers: []model.QuestionAndAnswer{
		qa("2024-05-10", "夏"), qa("2024-05-07", "冬"), qa("2024-05-01", "春"),
	}}
	svc := newTestService(userAPI, newMockUserRepo())

	cursor := model.MustParseDate("2024-05-08")
	page, err := svc.AnswersPage(context.Background(), "alice", &cursor)
	if err != nil {
		t.Fatalf("AnswersPage がエラーを返した: %v", err)
	}
	if len(page.Data) != 2 || page.Data[0].Question.ID.String() != "2024-05-07" {
		t.Errorf("Data = %+v", page.Data)
	}
	if page.NextKey == nil || page.NextKey.String() != "2024-04-30" {
		t.Errorf("NextKey = %v, want 2024-04-30", page.NextKey)
	}
}
