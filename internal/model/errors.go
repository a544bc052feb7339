// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, network, data, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired       = "AUTH_REQUIRED"
	ErrCodeLoginFailed        = "LOGIN_FAILED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeNetwork            = "NETWORK_ERROR"
	ErrCodeHTTP               = "HTTP_ERROR"
	ErrCodeDecodeFailed       = "DECODE_FAILED"
	ErrCodeCacheWriteFailed   = "CACHE_WRITE_FAILED"
	ErrCodeQuestionNotFound   = "QUESTION_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
)

// NewAuthRequiredError は認証切れエラーを生成する。
// トークン更新に失敗した場合もこのエラーになり、UIはログイン画面へ遷移する。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "認証の有効期限が切れました。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewLoginFailedError はログイン失敗エラーを生成する。
func NewLoginFailedError(status int) *APIError {
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  fmt.Sprintf("ログインに失敗しました (HTTP %d)", status),
		Category: "auth",
		Action:   "IDとパスワードを確認してください。",
	}
}

// NewInvalidCredentialsError は入力値検証エラーを生成する。
func NewInvalidCredentialsError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  fmt.Sprintf("IDまたはパスワードの形式が正しくありません: %s", reason),
		Category: "validation",
		Action:   "IDは5文字以上、パスワードは数字を含む8文字以上で入力してください。",
	}
}

// NewNetworkError は通信失敗エラーを生成する。
func NewNetworkError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeNetwork,
		Message:  fmt.Sprintf("サーバーとの通信に失敗しました: %s", reason),
		Category: "network",
		Action:   "通信環境を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewHTTPError はサーバーがエラーステータスを返した場合のエラーを生成する。
func NewHTTPError(status int) *APIError {
	return &APIError{
		Code:     ErrCodeHTTP,
		Message:  fmt.Sprintf("サーバーがステータス %d を返しました。", status),
		Category: "network",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewDecodeFailedError はレスポンス解析失敗エラーを生成する。
func NewDecodeFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeDecodeFailed,
		Message:  "サーバーの応答を解析できませんでした。",
		Category: "data",
		Action:   "アプリを最新版に更新してください。",
	}
}

// NewCacheWriteFailedError はローカルキャッシュへの書き込み失敗エラーを生成する。
func NewCacheWriteFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCacheWriteFailed,
		Message:  "ローカルキャッシュの更新に失敗しました。",
		Category: "system",
		Action:   "再読み込みしてください。",
	}
}

// NewQuestionNotFoundError は質問未検出エラーを生成する。
func NewQuestionNotFoundError(qid Date) *APIError {
	return &APIError{
		Code:     ErrCodeQuestionNotFound,
		Message:  fmt.Sprintf("指定された質問が見つかりません: %s", qid),
		Category: "data",
		Action:   "日付を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(uid string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("ユーザーが見つかりません: %s", uid),
		Category: "data",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewInvalidRequestError はリクエストパラメータ不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}
