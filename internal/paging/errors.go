package paging

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/dailyq/internal/api"
)

// ErrorKind はロード失敗の分類。
type ErrorKind int

const (
	// KindNetwork は通信失敗・タイムアウト。
	KindNetwork ErrorKind = iota
	// KindHTTP はサーバーが2xx以外を返した。
	KindHTTP
	// KindDecode はレスポンスを解析できなかった。
	KindDecode
	// KindCache はローカルキャッシュの読み書きに失敗した。
	KindCache
)

func (k ErrorKind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	case KindCache:
		return "cache"
	default:
		return "network"
	}
}

// LoadError はソースとメディエーターが返す統一エラー。
// 境界の外にはpanicや生のエラーを出さず、必ずこの型で返す。
type LoadError struct {
	Kind   ErrorKind
	Status int // KindHTTPの場合のステータスコード
	Err    error
}

func (e *LoadError) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("%s error (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Retryable は再試行に意味があるかどうかを返す。解析失敗は再試行しても変わらない。
func (e *LoadError) Retryable() bool {
	return e.Kind != KindDecode
}

// classify はAPIクライアントのエラーをLoadErrorに分類する。
func classify(err error) *LoadError {
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	var se *api.StatusError
	if errors.As(err, &se) {
		return &LoadError{Kind: KindHTTP, Status: se.StatusCode, Err: err}
	}
	var de *api.DecodeError
	if errors.As(err, &de) {
		return &LoadError{Kind: KindDecode, Err: err}
	}
	return &LoadError{Kind: KindNetwork, Err: err}
}

// cacheError はキャッシュ操作の失敗をLoadErrorに包む。
func cacheError(err error) *LoadError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &LoadError{Kind: KindNetwork, Err: err}
	}
	return &LoadError{Kind: KindCache, Err: err}
}
