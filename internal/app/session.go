package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/dailyq/internal/api"
	"github.com/hitoshi/dailyq/internal/auth"
	"github.com/hitoshi/dailyq/internal/config"
	"github.com/hitoshi/dailyq/internal/database"
	"github.com/hitoshi/dailyq/internal/handler"
	"github.com/hitoshi/dailyq/internal/metrics"
	"github.com/hitoshi/dailyq/internal/model"
	"github.com/hitoshi/dailyq/internal/paging"
	"github.com/hitoshi/dailyq/internal/profile"
	"github.com/hitoshi/dailyq/internal/question"
	"github.com/hitoshi/dailyq/internal/repository"
	"github.com/hitoshi/dailyq/internal/security"
	"github.com/hitoshi/dailyq/internal/session"
	"github.com/hitoshi/dailyq/internal/timeline"
	"github.com/hitoshi/dailyq/internal/worker/cleanup"
	"github.com/hitoshi/dailyq/internal/worker/poll"
)

// cleanupInterval はユーザーキャッシュ削除ジョブの実行間隔。
const cleanupInterval = 24 * time.Hour

// Session はクライアントコアの依存関係を所有する。
// トークンストア、APIクライアント、キャッシュDB、Pagerはすべてここから渡す。
type Session struct {
	DB       *sql.DB
	Dialect  database.Dialect
	Tokens   *session.TokenStore
	Client   *api.Client
	Registry *prometheus.Registry

	Auth      *auth.Service
	Questions *question.Service
	Profiles  *profile.Service
	Timeline  *paging.Pager[model.Question]

	poller  *poll.Poller
	cleanup *cleanup.CleanupJob
	logger  *slog.Logger
}

// NewSession は開いたDBから全依存関係をワイヤリングし、永続化済みのトークンを読み込む。
func NewSession(ctx context.Context, cfg *config.Config, db *sql.DB, dialect database.Dialect, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// 1. リポジトリの初期化
	kvRepo := repository.NewSQLKeyValueRepo(db, dialect)
	questionRepo := repository.NewSQLQuestionCacheRepo(db, dialect)
	userRepo := repository.NewSQLUserCacheRepo(db, dialect)

	// 2. トークンストアの読み込み
	tokens := session.NewTokenStore(kvRepo)
	if err := tokens.Load(ctx); err != nil {
		return nil, err
	}

	// 3. メトリクスとAPIクライアント
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	client := api.NewClient(cfg.APIBaseURL, tokens, api.TransportConfig{
		ConnectTimeout:    cfg.HTTPConnectTimeout,
		ReadTimeout:       cfg.HTTPReadTimeout,
		RateLimit:         cfg.APIRateLimit,
		RateBurst:         cfg.APIRateBurst,
		LogEndpointSuffix: cfg.LogEndpointSuffix,
		Metrics:           collector,
	}, logger)

	// 4. ドメインサービスの初期化
	sanitizer := security.NewContentSanitizer()
	clock := paging.SystemClock(cfg.Location)

	authService := auth.NewService(client, tokens, logger)
	questionService := question.NewService(client, questionRepo, sanitizer, logger)
	profileService := profile.NewService(client, userRepo, sanitizer, profile.Config{
		PageSize: cfg.ProfilePageSize,
		Clock:    clock,
	}, logger)
	timelinePager := timeline.NewPager(client, questionRepo, sanitizer, timeline.Config{
		PageSize:        cfg.TimelinePageSize,
		InitialLoadSize: cfg.TimelineInitialLoadSize,
		Clock:           clock,
	}, logger, collector)

	var poller *poll.Poller
	if cfg.TimelinePollInterval > 0 {
		poller = poll.NewPoller(timelinePager, clock, cfg.TimelinePollInterval, logger)
	}
	cleanupJob := cleanup.NewCleanupJob(userRepo, logger)
	if cfg.UserCacheRetentionDays > 0 {
		cleanupJob.RetentionDays = cfg.UserCacheRetentionDays
	}

	s := &Session{
		DB:        db,
		Dialect:   dialect,
		Tokens:    tokens,
		Client:    client,
		Registry:  reg,
		Auth:      authService,
		Questions: questionService,
		Profiles:  profileService,
		Timeline:  timelinePager,
		poller:    poller,
		cleanup:   cleanupJob,
		logger:    logger,
	}

	logger.Info("session initialized",
		slog.Bool("logged_in", s.Auth.LoggedIn()),
		slog.String("install_id", tokens.InstallID()),
	)
	return s, nil
}

// Me はログイン中のuidを返す。未ログインならエラー。
func (s *Session) Me() (string, error) {
	uid := s.Auth.CurrentUID()
	if uid == "" || !s.Auth.LoggedIn() {
		return "", model.NewAuthRequiredError()
	}
	return uid, nil
}

// LaunchTimeline はタイムラインのPagerを起動してキャッシュ済みの項目を配信する。ロードは待たない。
func (s *Session) LaunchTimeline(ctx context.Context) {
	s.Timeline.Launch(ctx)
}

// StartTimeline はタイムラインのPagerを起動し、初回ロードの完了を待つ。
// 初回ロードの失敗はスナップショットに残るため、ここではログだけ出す。
func (s *Session) StartTimeline(ctx context.Context) {
	if err := s.Timeline.Start(ctx); err != nil {
		s.logger.Warn("initial timeline load failed", slog.String("error", err.Error()))
	}
}

// RunBackground はタイムラインの起動と定期更新、キャッシュ削除ジョブを実行する。
// ctxが終了するまでブロックする。
func (s *Session) RunBackground(ctx context.Context) {
	go s.cleanup.Start(ctx, cleanupInterval)

	s.StartTimeline(ctx)
	if s.poller != nil {
		s.poller.Start(ctx)
		return
	}
	<-ctx.Done()
}

// Handler はブリッジのHTTPハンドラーを返す。
func (s *Session) Handler() http.Handler {
	return handler.NewRouter(&handler.RouterDeps{
		Logger:          s.logger,
		HealthChecker:   s.DB,
		Gatherer:        s.Registry,
		AuthService:     s.Auth,
		Timeline:        s.Timeline,
		QuestionService: s.Questions,
		ProfileService:  s.Profiles,
	})
}

// Close はキャッシュDBを閉じる。
func (s *Session) Close() error {
	if err := s.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
