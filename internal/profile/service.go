// Package profile はユーザープロフィールのキャッシュ、フォロー操作、
// ユーザーの回答一覧フィードを提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/dailyq/internal/model"
	"github.com/hitoshi/dailyq/internal/paging"
	"github.com/hitoshi/dailyq/internal/repository"
	"github.com/hitoshi/dailyq/internal/security"
)

// UserAPI はプロフィール関連のAPI呼び出し。*api.Clientが実装する。
type UserAPI interface {
	GetUser(ctx context.Context, uid string) (*model.User, error)
	Follow(ctx context.Context, uid string) error
	Unfollow(ctx context.Context, uid string) error
	GetUserAnswers(ctx context.Context, uid string, fromDate *model.Date) ([]model.QuestionAndAnswer, error)
}

// Service はプロフィール画面のビジネスロジックを提供する。
type Service struct {
	api       UserAPI
	users     repository.UserCacheRepository
	sanitizer security.ContentSanitizerService
	clock     paging.Clock
	pageSize  int
	logger    *slog.Logger
}

// Config はServiceの生成パラメータ。
type Config struct {
	PageSize int
	Clock    paging.Clock
}

// NewService はServiceを生成する。
func NewService(userAPI UserAPI, users repository.UserCacheRepository, sanitizer security.ContentSanitizerService, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:       userAPI,
		users:     users,
		sanitizer: sanitizer,
		clock:     cfg.Clock,
		pageSize:  cfg.PageSize,
		logger:    logger,
	}
}

// CachedUser はキャッシュ済みのユーザーを返す。未キャッシュならnil。
func (s *Service) CachedUser(ctx context.Context, uid string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to find cached user: %w", err)
	}
	return user, nil
}

// FetchUser はサーバーからユーザーを取得してキャッシュへ反映する。
// キャッシュに無ければ挿入し、内容が異なる場合だけ更新する。
// サーバーに存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) FetchUser(ctx context.Context, uid string) (*model.User, error) {
	fetched, err := s.api.GetUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	if fetched == nil {
		return nil, model.NewUserNotFoundError(uid)
	}
	user := *fetched
	if s.sanitizer != nil {
		user = s.sanitizer.SanitizeUser(user)
	}

	cached, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to find cached user: %w", err)
	}
	switch {
	case cached == nil:
		if err := s.users.Insert(ctx, &user); err != nil {
			return nil, fmt.Errorf("failed to insert user: %w", err)
		}
		s.logger.Debug("ユーザーをキャッシュに追加しました", slog.String("uid", uid))
	case !sameUser(cached, &user):
		if err := s.users.Update(ctx, &user); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		s.logger.Debug("ユーザーのキャッシュを更新しました", slog.String("uid", uid))
	}
	return &user, nil
}

// Follow はuidのユーザーをフォローし、最新のプロフィールを返す。
func (s *Service) Follow(ctx context.Context, uid string) (*model.User, error) {
	if err := s.api.Follow(ctx, uid); err != nil {
		return nil, fmt.Errorf("failed to follow user: %w", err)
	}
	return s.FetchUser(ctx, uid)
}

// Unfollow はuidのユーザーのフォローを解除し、最新のプロフィールを返す。
func (s *Service) Unfollow(ctx context.Context, uid string) (*model.User, error) {
	if err := s.api.Unfollow(ctx, uid); err != nil {
		return nil, fmt.Errorf("failed to unfollow user: %w", err)
	}
	return s.FetchUser(ctx, uid)
}

// AnswersSource はuidの回答一覧をサーバーから直接読むDateKeyedSourceを返す。
// APIはページサイズを受け取らないため、1ページの件数はサーバーが決める。
func (s *Service) AnswersSource(uid string) *paging.DateKeyedSource[model.QuestionAndAnswer] {
	fetch := func(ctx context.Context, from model.Date, _ int) ([]model.QuestionAndAnswer, error) {
		items, err := s.api.GetUserAnswers(ctx, uid, &from)
		if err != nil {
			return nil, err
		}
		if s.sanitizer == nil {
			return items, nil
		}
		for i := range items {
			items[i].Question = s.sanitizer.SanitizeQuestion(items[i].Question)
			if items[i].Answer != nil {
				a := s.sanitizer.SanitizeAnswer(*items[i].Answer)
				items[i].Answer = &a
			}
		}
		return items, nil
	}
	return paging.NewDateKeyedSource(fetch, answerKey, s.clock)
}

// AnswersPage はuidの回答一覧をcursor（nilなら今日）から1ページ取得する。
func (s *Service) AnswersPage(ctx context.Context, uid string, cursor *model.Date) (paging.Page[model.QuestionAndAnswer], error) {
	return s.AnswersSource(uid).Load(ctx, cursor, s.pageSize)
}

// NewAnswersPager はuidの回答一覧フィードのPagerを生成する。キャッシュは持たない。
func (s *Service) NewAnswersPager(uid string) *paging.Pager[model.QuestionAndAnswer] {
	return paging.NewRemotePager("user_answers", s.AnswersSource(uid), paging.Config{
		PageSize:        s.pageSize,
		InitialLoadSize: s.pageSize,
	}, s.logger.With(slog.String("uid", uid)))
}

func answerKey(qa model.QuestionAndAnswer) model.Date { return qa.Question.ID }

func sameUser(a, b *model.User) bool {
	return a.ID == b.ID &&
		a.Name == b.Name &&
		a.Description == b.Description &&
		a.Photo == b.Photo &&
		a.AnswerCount == b.AnswerCount &&
		a.FollowerCount == b.FollowerCount &&
		a.FollowingCount == b.FollowingCount &&
		a.Following() == b.Following() &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}
