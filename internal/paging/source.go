// Package paging は日付をキーとするフィードのページング機構を提供する。
// リモートソース、ローカルキャッシュとの調停（メディエーター）、
// ロード状態付きのスナップショットを配信するPagerからなる。
package paging

import (
	"context"
	"time"

	"github.com/hitoshi/dailyq/internal/model"
)

// Clock は「今日」を決める時計。
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// SystemClock は実時間と指定ロケーションのClockを返す。
func SystemClock(loc *time.Location) Clock {
	return Clock{Now: time.Now, Location: loc}
}

// Today は時計のロケーションにおける今日の日付を返す。
func (c Clock) Today() model.Date {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return model.DateOf(now().In(loc))
}

// Page は1回のロードで得たページ。
// NextKeyは古い側の次のカーソル、PrevKeyは新しい側のカーソル。nilはその方向の終端。
type Page[T any] struct {
	Data    []T
	PrevKey *model.Date
	NextKey *model.Date
}

// FetchFunc はfrom以前の項目を新しい順に最大pageSize件取得するリモート呼び出し。
type FetchFunc[T any] func(ctx context.Context, from model.Date, pageSize int) ([]T, error)

// KeyFunc は項目のキー（日付）を返す。
type KeyFunc[T any] func(item T) model.Date

// DateKeyedSource はカーソル日付から1ページ分をリモートから取得する。
// ローカルキャッシュは一切変更しない。
type DateKeyedSource[T any] struct {
	fetch FetchFunc[T]
	key   KeyFunc[T]
	clock Clock
}

// NewDateKeyedSource はDateKeyedSourceを生成する。
func NewDateKeyedSource[T any](fetch FetchFunc[T], key KeyFunc[T], clock Clock) *DateKeyedSource[T] {
	return &DateKeyedSource[T]{fetch: fetch, key: key, clock: clock}
}

// Load はcursor（nilなら今日）から1ページ取得する。
// 空でなければNextKeyは取得した最古の日付の前日、空ならnil。
// エラーは常に*LoadErrorで返す。
func (s *DateKeyedSource[T]) Load(ctx context.Context, cursor *model.Date, pageSize int) (Page[T], error) {
	from := s.clock.Today()
	if cursor != nil {
		from = *cursor
	}

	items, err := s.fetch(ctx, from, pageSize)
	if err != nil {
		return Page[T]{}, classify(err)
	}

	page := Page[T]{Data: items}
	if len(items) > 0 {
		oldest := s.key(items[0])
		for _, item := range items[1:] {
			oldest = model.MinDate(oldest, s.key(item))
		}
		next := oldest.AddDays(-1)
		page.NextKey = &next
	}
	return page, nil
}
