package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/dailyq/internal/metrics"
	"github.com/hitoshi/dailyq/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger        *slog.Logger
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer

	AuthService     AuthServiceInterface
	Timeline        TimelinePager
	QuestionService QuestionServiceInterface
	ProfileService  ProfileServiceInterface
}

// NewRouter はブリッジの全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders
//
// /login, /session, /health, /metrics 以外はログインが必要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.Timeline, logger)
	me := deps.AuthService.CurrentUID

	// --- ログイン不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker, logger))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Post("/login", authHandler.Login)
	r.Get("/session", authHandler.Session)

	// --- ログインが必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(requireLogin(deps.AuthService))

		r.Post("/logout", authHandler.Logout)
		r.Post("/push-token", authHandler.RegisterPushToken)

		if deps.Timeline != nil {
			r.Get("/timeline", NewTimelineHandler(deps.Timeline, logger).Get)
		}

		if deps.QuestionService != nil {
			questionHandler := NewQuestionHandler(deps.QuestionService, me, logger)
			r.Route("/questions/{qid}", func(r chi.Router) {
				r.Get("/", questionHandler.GetQuestion)
				r.Get("/answers", questionHandler.ListAnswers)
				r.Get("/answer", questionHandler.GetMyAnswer)
				r.Put("/answer", questionHandler.PutMyAnswer)
				r.Delete("/answer", questionHandler.DeleteMyAnswer)
			})
			r.Post("/images", questionHandler.UploadImage)
		}

		if deps.ProfileService != nil {
			userHandler := NewUserHandler(deps.ProfileService, me, logger)
			r.Route("/users/{uid}", func(r chi.Router) {
				r.Get("/", userHandler.GetUser)
				r.Post("/follow", userHandler.Follow)
				r.Delete("/follow", userHandler.Unfollow)
				r.Get("/answers", userHandler.ListAnswers)
			})
		}
	})

	return r
}
