package paging

import (
	"context"
	"log/slog"

	"github.com/hitoshi/dailyq/internal/model"
)

// LocalSource は新しい順に並んだローカルキャッシュの読み取り。
type LocalSource[T any] interface {
	List(ctx context.Context, offset, limit int) ([]T, error)
	Count(ctx context.Context) (int, error)
}

// NewMediatedPager はローカルキャッシュを表示の正とし、
// 窓の端に達したときだけRemoteMediatorでキャッシュを補うPagerを生成する。
// 読み込み済みの窓は常にローカルテーブルの先頭からの連続区間。
func NewMediatedPager[T any](name string, local LocalSource[T], mediator RemoteMediator[T], cfg Config, logger *slog.Logger) *Pager[T] {
	return newPager[T](name, &mediatedStrategy[T]{local: local, mediator: mediator, cfg: cfg.normalized()}, logger)
}

// NewRemotePager はキャッシュを持たずDateKeyedSourceから直接読み込むPagerを生成する。
// 新しい側への追加読み込みはない（PrevKeyは常にnil）。
func NewRemotePager[T any](name string, source *DateKeyedSource[T], cfg Config, logger *slog.Logger) *Pager[T] {
	return newPager[T](name, &remoteStrategy[T]{source: source, cfg: cfg.normalized()}, logger)
}

type mediatedStrategy[T any] struct {
	local    LocalSource[T]
	mediator RemoteMediator[T]
	cfg      Config
}

func (s *mediatedStrategy[T]) cached(ctx context.Context) ([]T, error) {
	items, err := s.local.List(ctx, 0, s.cfg.InitialLoadSize)
	if err != nil {
		return nil, cacheError(err)
	}
	return items, nil
}

func (s *mediatedStrategy[T]) load(ctx context.Context, loadType model.LoadType, items []T) ([]T, bool, error) {
	switch loadType {
	case model.LoadRefresh:
		result, err := s.mediator.Load(ctx, model.LoadRefresh, WindowOf(items))
		if err != nil {
			return nil, false, err
		}
		fresh, err := s.read(ctx, s.cfg.InitialLoadSize)
		if err != nil {
			return nil, false, err
		}
		return fresh, result.EndOfPaginationReached, nil

	case model.LoadAppend:
		// ローカルにまだ窓の外の項目があれば通信しない
		n, err := s.local.Count(ctx)
		if err != nil {
			return nil, false, cacheError(err)
		}
		if n <= len(items) {
			result, err := s.mediator.Load(ctx, model.LoadAppend, WindowOf(items))
			if err != nil {
				return nil, false, err
			}
			if result.EndOfPaginationReached {
				return items, true, nil
			}
		}
		grown, err := s.read(ctx, len(items)+s.cfg.PageSize)
		if err != nil {
			return nil, false, err
		}
		return grown, false, nil

	default:
		result, err := s.mediator.Load(ctx, model.LoadPrepend, WindowOf(items))
		if err != nil {
			return nil, false, err
		}
		if result.EndOfPaginationReached {
			return items, true, nil
		}
		grown, err := s.read(ctx, len(items)+s.cfg.PageSize)
		if err != nil {
			return nil, false, err
		}
		return grown, false, nil
	}
}

func (s *mediatedStrategy[T]) read(ctx context.Context, limit int) ([]T, error) {
	items, err := s.local.List(ctx, 0, limit)
	if err != nil {
		return nil, cacheError(err)
	}
	return items, nil
}

type remoteStrategy[T any] struct {
	source  *DateKeyedSource[T]
	cfg     Config
	nextKey *model.Date
}

func (s *remoteStrategy[T]) cached(context.Context) ([]T, error) {
	return nil, nil
}

func (s *remoteStrategy[T]) load(ctx context.Context, loadType model.LoadType, items []T) ([]T, bool, error) {
	switch loadType {
	case model.LoadRefresh:
		page, err := s.source.Load(ctx, nil, s.cfg.InitialLoadSize)
		if err != nil {
			return nil, false, err
		}
		s.nextKey = page.NextKey
		return page.Data, page.NextKey == nil, nil

	case model.LoadAppend:
		if s.nextKey == nil {
			return items, true, nil
		}
		page, err := s.source.Load(ctx, s.nextKey, s.cfg.PageSize)
		if err != nil {
			return nil, false, err
		}
		s.nextKey = page.NextKey
		return append(items, page.Data...), page.NextKey == nil, nil

	default:
		return items, true, nil
	}
}
