// Package session はプロセス全体で共有する認証状態（トークンとユーザーID）を管理する。
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/dailyq/internal/model"
	"github.com/hitoshi/dailyq/internal/repository"
)

// kvに保存するキー
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUID          = "uid"
	KeyInstallID    = "install_id"
)

// ErrUnpairedToken はリフレッシュトークンを伴わないアクセストークンを保存しようとした場合のエラー。
var ErrUnpairedToken = errors.New("access token must be paired with a refresh token")

// TokenStore は現在のアクセストークン・リフレッシュトークン・ユーザーIDを保持する。
// 値はkvテーブルに永続化され、再起動後もLoadで復元される。
// 読み書きはRWMutexで保護され、トークン更新中の読み取りと競合しない。
type TokenStore struct {
	kv repository.KeyValueRepository

	mu        sync.RWMutex
	token     model.AuthToken
	uid       string
	installID string
}

// NewTokenStore はTokenStoreを生成する。ネットワーク呼び出しの前にLoadを呼ぶこと。
func NewTokenStore(kv repository.KeyValueRepository) *TokenStore {
	return &TokenStore{kv: kv}
}

// Load は永続化済みの値をメモリに読み込む。
// 端末のインストールIDが未発行であればUUIDを発行して保存する。
func (s *TokenStore) Load(ctx context.Context) error {
	values := make(map[string]string, 4)
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyUID, KeyInstallID} {
		v, ok, err := s.kv.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("トークンストアの読み込みに失敗しました: %w", err)
		}
		if ok {
			values[key] = v
		}
	}

	installID := values[KeyInstallID]
	if installID == "" {
		installID = uuid.New().String()
		if err := s.kv.SetAll(ctx, map[string]string{KeyInstallID: installID}); err != nil {
			return fmt.Errorf("インストールIDの保存に失敗しました: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = model.AuthToken{AccessToken: values[KeyAccessToken], RefreshToken: values[KeyRefreshToken]}
	if s.token.RefreshToken == "" {
		s.token = model.AuthToken{}
	}
	s.uid = values[KeyUID]
	s.installID = installID
	return nil
}

// Get は現在のトークンペアを返す。未ログインの場合はfalse。
func (s *TokenStore) Get() (model.AuthToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token.AccessToken != ""
}

// AccessToken は現在のアクセストークンを返す。未ログインの場合は空文字。
func (s *TokenStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.AccessToken
}

// UID はログイン中のユーザーIDを返す。
func (s *TokenStore) UID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uid
}

// InstallID は端末ごとに発行したIDを返す。
func (s *TokenStore) InstallID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.installID
}

// Set はトークンペアを置き換える。
// メモリ上の値は両方のトークンを同時に置き換え、永続化に失敗した場合もメモリは更新済みのままエラーを返す。
func (s *TokenStore) Set(ctx context.Context, token model.AuthToken) error {
	if token.AccessToken != "" && token.RefreshToken == "" {
		return ErrUnpairedToken
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if err := s.kv.SetAll(ctx, map[string]string{
		KeyAccessToken:  token.AccessToken,
		KeyRefreshToken: token.RefreshToken,
	}); err != nil {
		return fmt.Errorf("トークンの保存に失敗しました: %w", err)
	}
	return nil
}

// SetSession はログイン成功時にユーザーIDとトークンペアを保存する。
func (s *TokenStore) SetSession(ctx context.Context, uid string, token model.AuthToken) error {
	if token.AccessToken == "" || token.RefreshToken == "" {
		return ErrUnpairedToken
	}

	s.mu.Lock()
	s.uid = uid
	s.token = token
	s.mu.Unlock()

	if err := s.kv.SetAll(ctx, map[string]string{
		KeyUID:          uid,
		KeyAccessToken:  token.AccessToken,
		KeyRefreshToken: token.RefreshToken,
	}); err != nil {
		return fmt.Errorf("ログイン情報の保存に失敗しました: %w", err)
	}
	return nil
}

// Clear はトークンとユーザーIDを破棄する。インストールIDは保持する。
func (s *TokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token = model.AuthToken{}
	s.uid = ""
	s.mu.Unlock()

	if err := s.kv.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyUID); err != nil {
		return fmt.Errorf("ログイン情報の削除に失敗しました: %w", err)
	}
	return nil
}
