package fetch

import (
	"context"
	"errors"
	"net/http"

	"github.com/John-Robertt/clash-override/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Group fetches many subscriptions concurrently. Concurrent requests for the
// same URL (within one call or across callers sharing the Group) share a
// single upstream request.
type Group struct {
	Options Options
	Limit   int // max parallel fetches per call, default 4

	sf singleflight.Group
}

// FetchAll returns one Result per URL, in input order; a repeated URL is
// fetched once. The first failure cancels the remaining fetches and is
// returned.
//
// A shared fetch is not tied to any one caller: it runs detached, bounded by
// Options.Timeout, and a caller whose ctx ends only stops waiting for it.
func (g *Group) FetchAll(ctx context.Context, kind Kind, urls []string) ([]Result, error) {
	out := make([]Result, len(urls))
	eg, ctx := errgroup.WithContext(ctx)
	limit := g.Limit
	if limit <= 0 {
		limit = 4
	}
	eg.SetLimit(limit)

	first := make(map[string]int, len(urls))
	for i, u := range urls {
		if _, dup := first[u]; dup {
			continue
		}
		first[u] = i
		eg.Go(func() error {
			res, err := g.fetchShared(ctx, kind, u)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	for i, u := range urls {
		if j := first[u]; j != i {
			out[i] = out[j]
		}
	}
	return out, nil
}

func (g *Group) fetchShared(ctx context.Context, kind Kind, u string) (Result, error) {
	detached := context.WithoutCancel(ctx)
	ch := g.sf.DoChan(kind.stage()+" "+u, func() (any, error) {
		return Fetch(detached, kind, u, g.Options)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	case <-ctx.Done():
		return Result{}, abandoned(kind, u, ctx.Err())
	}
}

func abandoned(kind Kind, u string, cause error) error {
	status, code, msg := http.StatusBadGateway, "FETCH_FAILED", "拉取已取消"
	if errors.Is(cause, context.DeadlineExceeded) {
		status, code, msg = http.StatusGatewayTimeout, "FETCH_TIMEOUT", "拉取远程资源超时"
	}
	return &FetchError{
		Status: status,
		AppError: model.AppError{
			Code:    code,
			Message: msg,
			Stage:   kind.stage(),
			URL:     u,
		},
		Cause: cause,
	}
}
