package main

import (
	"context"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/shoprec/engine"
	"github.com/rushteam/shoprec/feed"
	"github.com/rushteam/shoprec/store"
)

// runtime 是一次命令执行所需的全部依赖。
type runtime struct {
	engine  *engine.Engine
	closers []io.Closer
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i].Close()
	}
}

func (a *app) newRuntime(ctx context.Context) (*runtime, error) {
	rt := &runtime{}

	f, err := feed.OpenSQL(ctx, a.cfg.Feed.Driver, a.cfg.Feed.DSN)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, f)

	s, err := store.New(store.Options{
		Driver:        a.cfg.Store.Driver,
		RedisAddr:     a.cfg.Store.RedisAddr,
		RedisPassword: a.cfg.Store.RedisPassword,
		RedisDB:       a.cfg.Store.RedisDB,
		BadgerDir:     a.cfg.Store.BadgerDir,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, s)

	ec := a.cfg.Engine
	eng, err := engine.New(engine.Options{
		Feed:              f,
		Store:             s,
		Logger:            &a.log,
		Metrics:           engine.NewMetrics(a.registry),
		Seed:              ec.Seed,
		MaxLatentFactors:  ec.MaxLatentFactors,
		SimilarUsers:      ec.SimilarUsers,
		HistoryLimit:      ec.HistoryLimit,
		MaxFeatures:       ec.MaxFeatures,
		StaleAfter:        ec.StaleAfter,
		ExcludeInteracted: ec.ExcludeInteracted,
		StateKey:          ec.StateKey,
		BlockedProducts:   ec.BlockedProducts,
		BlocklistKey:      ec.BlocklistKey,
		FilterExpr:        ec.FilterExpr,
		SearchWindow:      time.Duration(a.cfg.Feed.SearchWindowDays) * 24 * time.Hour,
		RecallTimeout:     ec.RecallTimeout,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.engine = eng
	return rt, nil
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}
