package paging

import (
	"context"
	"log/slog"

	"github.com/hitoshi/dailyq/internal/metrics"
	"github.com/hitoshi/dailyq/internal/model"
)

// Window はPagerが現在読み込んでいるキャッシュ窓の両端。
// Firstが最も新しい項目、Lastが最も古い項目。空の窓では両方nil。
type Window[T any] struct {
	First *T
	Last  *T
}

// WindowOf は新しい順に並んだ項目から窓を作る。
func WindowOf[T any](items []T) Window[T] {
	if len(items) == 0 {
		return Window[T]{}
	}
	return Window[T]{First: &items[0], Last: &items[len(items)-1]}
}

// MediatorResult はメディエーターのロード結果。
type MediatorResult struct {
	EndOfPaginationReached bool
}

// RemoteMediator はリモートとローカルキャッシュを調停する。
type RemoteMediator[T any] interface {
	Load(ctx context.Context, loadType model.LoadType, window Window[T]) (MediatorResult, error)
}

// CacheWriter はトランザクション内でのキャッシュ書き込み操作。
type CacheWriter[T any] interface {
	UpsertAll(ctx context.Context, items []T) error
	DeleteAll(ctx context.Context) error
}

// Cache はトランザクション境界を呼び出し元が決めるローカルキャッシュ。
type Cache[T any] interface {
	WithTx(ctx context.Context, fn func(w CacheWriter[T]) error) error
}

// DateKeyedMediator は日付キーのフィードに対するRemoteMediatorの実装。
type DateKeyedMediator[T any] struct {
	source   *DateKeyedSource[T]
	cache    Cache[T]
	key      KeyFunc[T]
	clock    Clock
	pageSize int
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
}

var _ RemoteMediator[struct{}] = (*DateKeyedMediator[struct{}])(nil)

// MediatorConfig はDateKeyedMediatorの生成パラメータ。
type MediatorConfig struct {
	PageSize int
	Clock    Clock
	Logger   *slog.Logger
	Metrics  metrics.MetricsCollector
}

// NewDateKeyedMediator はDateKeyedMediatorを生成する。
func NewDateKeyedMediator[T any](source *DateKeyedSource[T], cache Cache[T], key KeyFunc[T], cfg MediatorConfig) *DateKeyedMediator[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	return &DateKeyedMediator[T]{
		source:   source,
		cache:    cache,
		key:      key,
		clock:    cfg.Clock,
		pageSize: cfg.PageSize,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// Load はloadTypeと現在の窓からカーソルを決め、1ページ取得してキャッシュへ反映する。
//   - REFRESH: 今日から取得し、キャッシュを消去して書き込む（1トランザクション）。
//   - PREPEND: 窓が空なら何もせず成功（終端ではない）。先頭が今日以降なら通信せず終端。
//     それ以外は先頭からページ幅分進めた日（今日を超えない）から取得する。
//   - APPEND: 末尾の前日（窓が空なら今日）から取得する。
//
// 空ページは終端として扱い、キャッシュには書き込まない。
// エラーは*LoadErrorで返し、その場合キャッシュは変更されていない。
func (m *DateKeyedMediator[T]) Load(ctx context.Context, loadType model.LoadType, window Window[T]) (MediatorResult, error) {
	today := m.clock.Today()

	var cursor model.Date
	switch loadType {
	case model.LoadRefresh:
		cursor = today
	case model.LoadPrepend:
		if window.First == nil {
			return m.finish(loadType, MediatorResult{EndOfPaginationReached: false}, metrics.ResultSuccess), nil
		}
		first := m.key(*window.First)
		if !first.Before(today) {
			return m.finish(loadType, MediatorResult{EndOfPaginationReached: true}, metrics.ResultEndOfData), nil
		}
		cursor = model.MinDate(first.AddDays(m.pageSize), today)
	case model.LoadAppend:
		cursor = today
		if window.Last != nil {
			cursor = m.key(*window.Last).AddDays(-1)
		}
	}

	m.logger.Debug("リモートから取得します",
		slog.String("load_type", loadType.String()),
		slog.String("cursor", cursor.String()),
		slog.Int("page_size", m.pageSize),
	)

	page, err := m.source.Load(ctx, &cursor, m.pageSize)
	if err != nil {
		m.metrics.RecordMediatorLoad(loadType.String(), metrics.ResultError)
		m.logger.Warn("リモートからの取得に失敗しました",
			slog.String("load_type", loadType.String()),
			slog.String("cursor", cursor.String()),
			slog.String("error", err.Error()),
		)
		return MediatorResult{}, err
	}

	if len(page.Data) == 0 {
		return m.finish(loadType, MediatorResult{EndOfPaginationReached: true}, metrics.ResultEndOfData), nil
	}

	if err := ctx.Err(); err != nil {
		m.metrics.RecordMediatorLoad(loadType.String(), metrics.ResultError)
		return MediatorResult{}, &LoadError{Kind: KindNetwork, Err: err}
	}

	// 開始したトランザクションは呼び出し元のキャンセルに関係なくコミットかロールバックまで進める
	txCtx := context.WithoutCancel(ctx)
	err = m.cache.WithTx(txCtx, func(w CacheWriter[T]) error {
		if loadType == model.LoadRefresh {
			if err := w.DeleteAll(txCtx); err != nil {
				return err
			}
		}
		return w.UpsertAll(txCtx, page.Data)
	})
	if err != nil {
		m.metrics.RecordMediatorLoad(loadType.String(), metrics.ResultError)
		m.logger.Error("キャッシュへの書き込みに失敗しました",
			slog.String("load_type", loadType.String()),
			slog.String("error", err.Error()),
		)
		return MediatorResult{}, cacheError(err)
	}

	m.metrics.RecordItemsUpserted(len(page.Data))
	return m.finish(loadType, MediatorResult{EndOfPaginationReached: false}, metrics.ResultSuccess), nil
}

func (m *DateKeyedMediator[T]) finish(loadType model.LoadType, result MediatorResult, label string) MediatorResult {
	m.metrics.RecordMediatorLoad(loadType.String(), label)
	return result
}
