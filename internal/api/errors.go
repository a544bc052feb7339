package api

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError はAPIが2xx以外のステータスを返した場合のエラー。
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: サーバーがステータス %d を返しました", e.Method, e.Path, e.StatusCode)
}

// Unauthorized は認証エラー（401）かどうかを返す。
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// DecodeError はレスポンス本文を解析できなかった場合のエラー。
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: レスポンスJSONのパースに失敗しました: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StatusCodeOf はerrがStatusErrorであればそのステータスコードを返す。それ以外は0。
func StatusCodeOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsUnauthorized はerrが401によるStatusErrorかどうかを返す。
func IsUnauthorized(err error) bool {
	return StatusCodeOf(err) == http.StatusUnauthorized
}
