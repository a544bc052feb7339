// Package question は質問詳細と回答の操作を提供する。
package question

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hitoshi/dailyq/internal/model"
	"github.com/hitoshi/dailyq/internal/repository"
	"github.com/hitoshi/dailyq/internal/security"
)

// QuestionAPI は質問・回答関連のAPI呼び出し。*api.Clientが実装する。
type QuestionAPI interface {
	GetQuestion(ctx context.Context, qid model.Date) (*model.Question, error)
	GetAnswers(ctx context.Context, qid model.Date) ([]model.Answer, error)
	GetAnswer(ctx context.Context, qid model.Date, uid string) (*model.Answer, error)
	WriteAnswer(ctx context.Context, qid model.Date, text, photo string) (*model.Answer, error)
	EditAnswer(ctx context.Context, qid model.Date, uid, text, photo string) (*model.Answer, error)
	DeleteAnswer(ctx context.Context, qid model.Date, uid string) error
	UploadImage(ctx context.Context, filename, contentType string, image io.Reader) (*model.Image, error)
}

// Service は質問詳細画面と回答編集画面のビジネスロジックを提供する。
type Service struct {
	api       QuestionAPI
	questions repository.QuestionCacheRepository
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(questionAPI QuestionAPI, questions repository.QuestionCacheRepository, sanitizer security.ContentSanitizerService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: questionAPI, questions: questions, sanitizer: sanitizer, logger: logger}
}

// CachedQuestion はキャッシュ済みの質問を返す。未キャッシュならnil。
func (s *Service) CachedQuestion(ctx context.Context, qid model.Date) (*model.Question, error) {
	q, err := s.questions.FindByID(ctx, qid)
	if err != nil {
		return nil, fmt.Errorf("failed to find cached question: %w", err)
	}
	return q, nil
}

// FetchQuestion はサーバーから質問を取得し、キャッシュへupsertして返す。
// サーバーに存在しない場合はQUESTION_NOT_FOUNDを返す。
func (s *Service) FetchQuestion(ctx context.Context, qid model.Date) (*model.Question, error) {
	fetched, err := s.api.GetQuestion(ctx, qid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch question: %w", err)
	}
	if fetched == nil {
		return nil, model.NewQuestionNotFoundError(qid)
	}
	q := s.sanitizeQuestion(*fetched)

	err = s.questions.WithTx(ctx, func(w repository.QuestionWriter) error {
		return w.UpsertAll(ctx, []model.Question{q})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cache question: %w", err)
	}
	return &q, nil
}

// Details はキャッシュを先に返し、その後サーバーの最新値を返す。
// emitはキャッシュがあれば1回、取得に成功すればもう1回呼ばれる。
// 取得に失敗した場合、キャッシュを返していればそのエラーも返す。
func (s *Service) Details(ctx context.Context, qid model.Date, emit func(q *model.Question)) error {
	cached, err := s.CachedQuestion(ctx, qid)
	if err != nil {
		s.logger.Warn("質問キャッシュの読み込みに失敗しました",
			slog.String("qid", qid.String()),
			slog.String("error", err.Error()),
		)
	}
	if cached != nil {
		emit(cached)
	}

	fresh, err := s.FetchQuestion(ctx, qid)
	if err != nil {
		return err
	}
	emit(fresh)
	return nil
}

// Answers は質問に対する全ユーザーの回答を返す。
func (s *Service) Answers(ctx context.Context, qid model.Date) ([]model.Answer, error) {
	answers, err := s.api.GetAnswers(ctx, qid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch answers: %w", err)
	}
	for i := range answers {
		answers[i] = s.sanitizeAnswer(answers[i])
	}
	return answers, nil
}

// Answer はuidの回答を返す。未回答ならnil。
func (s *Service) Answer(ctx context.Context, qid model.Date, uid string) (*model.Answer, error) {
	a, err := s.api.GetAnswer(ctx, qid, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch answer: %w", err)
	}
	if a == nil {
		return nil, nil
	}
	clean := s.sanitizeAnswer(*a)
	return &clean, nil
}

// SaveAnswer はuidの回答が無ければ新規作成し、あれば編集する。
func (s *Service) SaveAnswer(ctx context.Context, qid model.Date, uid, text, photo string) (*model.Answer, error) {
	if strings.TrimSpace(text) == "" && photo == "" {
		return nil, model.NewInvalidRequestError("answer text or photo is required")
	}

	existing, err := s.api.GetAnswer(ctx, qid, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch answer: %w", err)
	}

	var saved *model.Answer
	if existing == nil {
		saved, err = s.api.WriteAnswer(ctx, qid, text, photo)
	} else {
		saved, err = s.api.EditAnswer(ctx, qid, uid, text, photo)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}

	s.logger.Info("回答を保存しました",
		slog.String("qid", qid.String()),
		slog.String("uid", uid),
		slog.Bool("edited", existing != nil),
	)
	clean := s.sanitizeAnswer(*saved)
	return &clean, nil
}

// DeleteAnswer はuidの回答を削除する。
func (s *Service) DeleteAnswer(ctx context.Context, qid model.Date, uid string) error {
	if err := s.api.DeleteAnswer(ctx, qid, uid); err != nil {
		return fmt.Errorf("failed to delete answer: %w", err)
	}
	s.logger.Info("回答を削除しました", slog.String("qid", qid.String()), slog.String("uid", uid))
	return nil
}

// UploadImage は画像をアップロードし、回答に添付するURLを返す。
func (s *Service) UploadImage(ctx context.Context, filename, contentType string, image io.Reader) (string, error) {
	img, err := s.api.UploadImage(ctx, filename, contentType, image)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return img.URL, nil
}

func (s *Service) sanitizeQuestion(q model.Question) model.Question {
	if s.sanitizer == nil {
		return q
	}
	return s.sanitizer.SanitizeQuestion(q)
}

func (s *Service) sanitizeAnswer(a model.Answer) model.Answer {
	if s.sanitizer == nil {
		return a
	}
	return s.sanitizer.SanitizeAnswer(a)
}
