package recall

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/utils"
)

type staticSource struct {
	name string
	ids  []int64
	err  error
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Recall(context.Context, *core.RecommendContext) ([]*core.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*core.Item, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, core.NewItem(id))
	}
	return out, nil
}

func TestFanout_Process(t *testing.T) {
	n := &Fanout{Sources: []Source{
		&staticSource{name: "a", ids: []int64{1, 2, 3}},
		&staticSource{name: "b", ids: []int64{2, 4}},
	}}
	items, err := n.Process(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if got, want := core.ItemIDs(items), []int64{1, 2, 3, 2, 4}; !slices.Equal(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
	if got := items[3].Labels[utils.LabelRecallPriority].First(); got != "1" {
		t.Errorf("priority of second source = %q, want 1", got)
	}
}

// blockingSource 一直等到 ctx 结束。
type blockingSource struct{}

func (blockingSource) Name() string { return "blocking" }

func (blockingSource) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFanout_Timeout(t *testing.T) {
	n := &Fanout{
		Sources: []Source{&staticSource{name: "a", ids: []int64{1}}, blockingSource{}},
		Timeout: 20 * time.Millisecond,
	}
	start := time.Now()
	_, err := n.Process(context.Background(), &core.RecommendContext{}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout not applied, took %s", elapsed)
	}
}

func TestFanout_Error(t *testing.T) {
	boom := errors.New("boom")
	n := &Fanout{Sources: []Source{
		&staticSource{name: "a", ids: []int64{1}},
		&staticSource{name: "b", err: boom},
	}}
	if _, err := n.Process(context.Background(), &core.RecommendContext{}, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
