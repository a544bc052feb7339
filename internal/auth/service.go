// Package auth はパスワードログイン、ログアウト、ログイン状態の判定を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hitoshi/dailyq/internal/api"
	"github.com/hitoshi/dailyq/internal/model"
)

const (
	minUIDLength      = 5
	minPasswordLength = 8
)

// Authenticator はトークン発行APIの呼び出し。*api.Clientが実装する。
type Authenticator interface {
	Login(ctx context.Context, uid, password string) (model.AuthToken, error)
	RegisterPushToken(ctx context.Context, pushToken string) error
}

// SessionStore はログイン状態の保存先。*session.TokenStoreが実装する。
type SessionStore interface {
	SetSession(ctx context.Context, uid string, token model.AuthToken) error
	Clear(ctx context.Context) error
	AccessToken() string
	UID() string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	authenticator Authenticator
	store         SessionStore
	logger        *slog.Logger
}

// NewService はServiceを生成する。
func NewService(authenticator Authenticator, store SessionStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{authenticator: authenticator, store: store, logger: logger}
}

// ValidateCredentials は通信前の入力値検証を行う。
// uidは5文字以上、パスワードは数字を含む8文字以上。
func ValidateCredentials(uid, password string) error {
	if utf8.RuneCountInString(uid) < minUIDLength {
		return model.NewInvalidCredentialsError("uid is too short")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return model.NewInvalidCredentialsError("password is too short")
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		return model.NewInvalidCredentialsError("password must contain a digit")
	}
	return nil
}

// Login は入力値を検証した後にトークンを取得し、uidとともに保存する。
// 失敗時は*model.APIErrorを返し、保存済みの状態は変更しない。
func (s *Service) Login(ctx context.Context, uid, password string) error {
	if err := ValidateCredentials(uid, password); err != nil {
		return err
	}

	token, err := s.authenticator.Login(ctx, uid, password)
	if err != nil {
		s.logger.Warn("ログインに失敗しました",
			slog.String("uid", uid),
			slog.String("error", err.Error()),
		)
		var se *api.StatusError
		if errors.As(err, &se) {
			return model.NewLoginFailedError(se.StatusCode)
		}
		var de *api.DecodeError
		if errors.As(err, &de) {
			return model.NewDecodeFailedError()
		}
		return model.NewNetworkError(err.Error())
	}

	if err := s.store.SetSession(ctx, uid, token); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("ログインしました", slog.String("uid", uid))
	return nil
}

// Logout はトークンとuidを破棄する。
func (s *Service) Logout(ctx context.Context) error {
	uid := s.store.UID()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.logger.Info("ログアウトしました", slog.String("uid", uid))
	return nil
}

// LoggedIn は空白でないアクセストークンを保持しているかを返す。
func (s *Service) LoggedIn() bool {
	return strings.TrimSpace(s.store.AccessToken()) != ""
}

// CurrentUID はログイン中のuidを返す。未ログインなら空文字列。
func (s *Service) CurrentUID() string {
	if !s.LoggedIn() {
		return ""
	}
	return s.store.UID()
}

// RegisterPushToken はプッシュ通知用トークンをサーバーに登録する。ログインが必要。
func (s *Service) RegisterPushToken(ctx context.Context, pushToken string) error {
	if !s.LoggedIn() {
		return model.NewAuthRequiredError()
	}
	pushToken = strings.TrimSpace(pushToken)
	if pushToken == "" {
		return model.NewInvalidRequestError("push token is empty")
	}
	if err := s.authenticator.RegisterPushToken(ctx, pushToken); err != nil {
		return fmt.Errorf("failed to register push token: %w", err)
	}
	return nil
}
