// Package security はサーバーから受け取ったコンテンツの無害化を提供する。
//
// 質問文・回答文・プロフィール文はUIでプレーンテキストとして表示するため、
// bluemondayのStrictPolicyで全てのHTMLタグを除去してからキャッシュへ保存する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/dailyq/internal/model"
)

// ContentSanitizerService はテキストのサニタイズ機能のインターフェースを定義する。
// キャッシュ保存前とブリッジでの応答前に使用される。
type ContentSanitizerService interface {
	// Sanitize は全てのHTMLタグを除去したプレーンテキストを返す。
	// script, styleなどの要素は中身ごと除去される。
	// 文字参照はデコードされ、前後の空白は除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
	SanitizeQuestion(q model.Question) model.Question
	SanitizeAnswer(a model.Answer) model.Answer
	SanitizeUser(u model.User) model.User
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフ。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() ContentSanitizerService {
	return &contentSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	// StrictPolicyは文字をエスケープして返すため、プレーンテキストに戻す
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

func (s *contentSanitizer) SanitizeQuestion(q model.Question) model.Question {
	q.Text = s.Sanitize(q.Text)
	return q
}

func (s *contentSanitizer) SanitizeAnswer(a model.Answer) model.Answer {
	a.Text = s.Sanitize(a.Text)
	if a.Answerer != nil {
		u := s.SanitizeUser(*a.Answerer)
		a.Answerer = &u
	}
	return a
}

func (s *contentSanitizer) SanitizeUser(u model.User) model.User {
	u.Name = s.Sanitize(u.Name)
	u.Description = s.Sanitize(u.Description)
	return u
}
