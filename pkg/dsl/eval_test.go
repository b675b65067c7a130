package dsl

import (
	"testing"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/utils"
)

func TestProgram_Eval(t *testing.T) {
	item := core.NewItem(42)
	item.Score = 0.8
	item.Meta["price"] = 59.9
	item.Meta["category_id"] = int64(3)
	item.PutLabel(utils.LabelRecallSource, utils.Label{Value: "content", Source: "recall"})
	rctx := core.NewRecommendContext(7, "hybrid", 5)

	tests := []struct {
		expr string
		want bool
	}{
		{`item.meta.price <= 100.0`, true},
		{`item.meta.category_id == 3`, true},
		{`item.id == 42 && item.score > 0.5`, true},
		{`label.recall_source == "collaborative"`, false},
		{`item.labels.recall_source.source == "recall"`, true},
		{`rctx.user_id == 7 && rctx.scene == "hybrid"`, true},
		{`has(item.meta.rating)`, false},
		{`rctx.params.limit == 5`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr, item, rctx)
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	for _, expr := range []string{`item.score >`, `1 + 2`} {
		if _, err := Compile(expr); !core.IsInvalidInput(err) {
			t.Errorf("Compile(%q) err = %v, want INVALID_INPUT", expr, err)
		}
	}
}

func TestEvaluate_Empty(t *testing.T) {
	ok, err := Evaluate("", core.NewItem(1), nil)
	if err != nil || !ok {
		t.Fatalf("empty expression = %v, %v", ok, err)
	}
}
