package paging

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/dailyq/internal/model"
)

// --- テスト用モック ---

type item struct {
	Date model.Date
	Text string
}

func itemKey(it item) model.Date { return it.Date }

func fixedClock(today string) Clock {
	d := model.MustParseDate(today)
	return Clock{
		Now:      func() time.Time { return d.In(time.UTC).Add(12 * time.Hour) },
		Location: time.UTC,
	}
}

// fakeRemote は日付ごとに1件の項目を持つリモート。
type fakeRemote struct {
	mu      sync.Mutex
	dates   map[model.Date]bool
	calls   []model.Date
	failErr error
}

func newFakeRemote(dates ...string) *fakeRemote {
	r := &fakeRemote{dates: make(map[model.Date]bool)}
	for _, d := range dates {
		r.dates[model.MustParseDate(d)] = true
	}
	return r
}

func (r *fakeRemote) fetch(ctx context.Context, from model.Date, pageSize int) ([]item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, from)
	if r.failErr != nil {
		return nil, r.failErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []model.Date
	for d := range r.dates {
		if !d.After(from) {
			all = append(all, d)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].After(all[j]) })
	if len(all) > pageSize {
		all = all[:pageSize]
	}
	out := make([]item, 0, len(all))
	for _, d := range all {
		out = append(out, item{Date: d, Text: "q " + d.String()})
	}
	return out, nil
}

func (r *fakeRemote) add(dates ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range dates {
		r.dates[model.MustParseDate(d)] = true
	}
}

func (r *fakeRemote) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failErr = err
}

func (r *fakeRemote) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRemote) lastCall() model.Date {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

// memCache はトランザクション付きのインメモリキャッシュ。
type memCache struct {
	mu          sync.Mutex
	rows        map[model.Date]item
	failUpsert  error
	failListErr error
}

func newMemCache(dates ...string) *memCache {
	c := &memCache{rows: make(map[model.Date]item)}
	for _, d := range dates {
		date := model.MustParseDate(d)
		c.rows[date] = item{Date: date, Text: "cached " + d}
	}
	return c
}

type memWriter struct {
	rows       map[model.Date]item
	failUpsert error
}

func (w *memWriter) UpsertAll(_ context.Context, items []item) error {
	if w.failUpsert != nil {
		return w.failUpsert
	}
	for _, it := range items {
		w.rows[it.Date] = it
	}
	return nil
}

func (w *memWriter) DeleteAll(context.Context) error {
	clear(w.rows)
	return nil
}

func (c *memCache) WithTx(ctx context.Context, fn func(w CacheWriter[item]) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	staged := make(map[model.Date]item, len(c.rows))
	for k, v := range c.rows {
		staged[k] = v
	}
	if err := fn(&memWriter{rows: staged, failUpsert: c.failUpsert}); err != nil {
		return err
	}
	c.rows = staged
	return nil
}

func (c *memCache) List(_ context.Context, offset, limit int) ([]item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failListErr != nil {
		return nil, c.failListErr
	}
	all := c.sortedLocked()
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (c *memCache) Count(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows), nil
}

func (c *memCache) dates() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, it := range c.sortedLocked() {
		out = append(out, it.Date.String())
	}
	return out
}

func (c *memCache) sortedLocked() []item {
	all := make([]item, 0, len(c.rows))
	for _, it := range c.rows {
		all = append(all, it)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	return all
}

func datesOf(items []item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Date.String())
	}
	return out
}

func ptr[T any](v T) *T { return &v }

var errBoom = errors.New("boom")
