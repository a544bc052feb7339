// Package poll はタイムラインのバックグラウンド更新を提供する。
// 日付が変わって新しい質問が出題されたときの再読み込みと、
// ロード失敗時の指数バックオフ付き再試行を行う。
package poll

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/dailyq/internal/model"
	"github.com/hitoshi/dailyq/internal/paging"
)

// maxBackoff は指数バックオフの最大遅延。
const maxBackoff = time.Hour

// Timeline はPollerが操作するタイムラインのPager。
type Timeline interface {
	Refresh(ctx context.Context) error
	Retry(ctx context.Context) error
	Snapshot() paging.Snapshot[model.Question]
}

// Action はRunOnceが実行した操作。
type Action string

const (
	ActionNone    Action = "none"
	ActionRefresh Action = "refresh"
	ActionRetry   Action = "retry"
)

// Poller は一定間隔でタイムラインを点検し、必要なときだけロードする。
type Poller struct {
	timeline Timeline
	clock    paging.Clock
	interval time.Duration
	logger   *slog.Logger

	consecutiveErrors int
}

// NewPoller はPollerを生成する。
func NewPoller(timeline Timeline, clock paging.Clock, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{timeline: timeline, clock: clock, interval: interval, logger: logger}
}

// CalculateBackoff は連続エラー回数に基づいて次の点検までの遅延を計算する。
// interval から2倍ずつ増加し、最大1時間。
func CalculateBackoff(interval time.Duration, consecutiveErrors int) time.Duration {
	delay := interval
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// Start はctxが終了するまでタイムラインを点検し続ける。
// ロードに失敗した場合は次の点検を指数バックオフで遅らせる。
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("タイムラインの定期更新を開始しました", slog.Duration("interval", p.interval))

	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("タイムラインの定期更新を停止しました")
			return
		case <-timer.C:
		}

		action, err := p.RunOnce(ctx)
		if errors.Is(err, paging.ErrPagerClosed) {
			return
		}

		next := p.interval
		if err != nil {
			p.consecutiveErrors++
			next = CalculateBackoff(p.interval, p.consecutiveErrors)
			p.logger.Warn("タイムラインの定期更新に失敗しました",
				slog.String("action", string(action)),
				slog.Int("consecutive_errors", p.consecutiveErrors),
				slog.Duration("next", next),
				slog.String("error", err.Error()),
			)
		} else {
			p.consecutiveErrors = 0
		}
		timer.Reset(next)
	}
}

// RunOnce はタイムラインを1回点検する。
// エラー状態の端があれば再試行し、先頭が今日の質問でなければ全体を読み直す。
func (p *Poller) RunOnce(ctx context.Context) (Action, error) {
	snap := p.timeline.Snapshot()

	for _, st := range []paging.LoadState{snap.States.Refresh, snap.States.Prepend, snap.States.Append} {
		if st.Status == paging.StatusError {
			return ActionRetry, p.timeline.Retry(ctx)
		}
	}

	today := p.clock.Today()
	if len(snap.Items) > 0 && !snap.Items[0].ID.Before(today) {
		return ActionNone, nil
	}

	p.logger.Debug("新しい質問を取得します", slog.String("today", today.String()))
	return ActionRefresh, p.timeline.Refresh(ctx)
}
