// Package timeline は質問タイムラインのページングを組み立てる。
// ローカルの質問キャッシュを表示の正とし、DateKeyedMediatorでサーバーから補う。
package timeline

import (
	"context"
	"log/slog"

	"github.com/hitoshi/dailyq/internal/metrics"
	"github.com/hitoshi/dailyq/internal/model"
	"github.com/hitoshi/dailyq/internal/paging"
	"github.com/hitoshi/dailyq/internal/repository"
	"github.com/hitoshi/dailyq/internal/security"
)

// QuestionFetcher は質問一覧APIの呼び出し。*api.Clientが実装する。
type QuestionFetcher interface {
	GetQuestions(ctx context.Context, from model.Date, pageSize int) ([]model.Question, error)
}

// Config はタイムラインの生成パラメータ。
type Config struct {
	PageSize        int
	InitialLoadSize int
	Clock           paging.Clock
}

// QuestionKey は質問のページングキー（出題日）を返す。
func QuestionKey(q model.Question) model.Date { return q.ID }

// NewMediator は質問キャッシュ用のDateKeyedMediatorを生成する。
func NewMediator(
	fetcher QuestionFetcher,
	repo repository.QuestionCacheRepository,
	sanitizer security.ContentSanitizerService,
	cfg Config,
	logger *slog.Logger,
	m metrics.MetricsCollector,
) *paging.DateKeyedMediator[model.Question] {
	source := paging.NewDateKeyedSource(fetcher.GetQuestions, QuestionKey, cfg.Clock)
	return paging.NewDateKeyedMediator(source, NewCache(repo, sanitizer), QuestionKey, paging.MediatorConfig{
		PageSize: cfg.PageSize,
		Clock:    cfg.Clock,
		Logger:   logger,
		Metrics:  m,
	})
}

// NewPager はタイムラインのPagerを生成する。Startで初回ロードが始まる。
func NewPager(
	fetcher QuestionFetcher,
	repo repository.QuestionCacheRepository,
	sanitizer security.ContentSanitizerService,
	cfg Config,
	logger *slog.Logger,
	m metrics.MetricsCollector,
) *paging.Pager[model.Question] {
	mediator := NewMediator(fetcher, repo, sanitizer, cfg, logger, m)
	return paging.NewMediatedPager[model.Question]("timeline", repo, mediator, paging.Config{
		PageSize:        cfg.PageSize,
		InitialLoadSize: cfg.InitialLoadSize,
	}, logger)
}

// Cache は質問キャッシュリポジトリをメディエーターの書き込み先に合わせる。
// 書き込む質問文はサニタイズされる。
type Cache struct {
	repo      repository.QuestionCacheRepository
	sanitizer security.ContentSanitizerService
}

var _ paging.Cache[model.Question] = (*Cache)(nil)

// NewCache はCacheを生成する。sanitizerがnilの場合はサニタイズしない。
func NewCache(repo repository.QuestionCacheRepository, sanitizer security.ContentSanitizerService) *Cache {
	return &Cache{repo: repo, sanitizer: sanitizer}
}

// WithTx はリポジトリのトランザクション内でfnを実行する。
func (c *Cache) WithTx(ctx context.Context, fn func(w paging.CacheWriter[model.Question]) error) error {
	return c.repo.WithTx(ctx, func(w repository.QuestionWriter) error {
		return fn(&sanitizingWriter{w: w, sanitizer: c.sanitizer})
	})
}

type sanitizingWriter struct {
	w         repository.QuestionWriter
	sanitizer security.ContentSanitizerService
}

func (s *sanitizingWriter) UpsertAll(ctx context.Context, questions []model.Question) error {
	if s.sanitizer == nil {
		return s.w.UpsertAll(ctx, questions)
	}
	clean := make([]model.Question, len(questions))
	for i, q := range questions {
		clean[i] = s.sanitizer.SanitizeQuestion(q)
	}
	return s.w.UpsertAll(ctx, clean)
}

func (s *sanitizingWriter) DeleteAll(ctx context.Context) error {
	return s.w.DeleteAll(ctx)
}
