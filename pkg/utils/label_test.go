package utils

import (
	"slices"
	"testing"
)

func TestMergeLabel(t *testing.T) {
	tests := []struct {
		name     string
		existing Label
		incoming Label
		want     Label
	}{
		{
			name:     "empty existing",
			incoming: Label{Value: "content", Source: "recall"},
			want:     Label{Value: "content", Source: "recall"},
		},
		{
			name:     "empty incoming",
			existing: Label{Value: "content", Source: "recall"},
			want:     Label{Value: "content", Source: "recall"},
		},
		{
			name:     "accumulate",
			existing: Label{Value: "collaborative", Source: "recall"},
			incoming: Label{Value: "content", Source: "merge"},
			want:     Label{Value: "collaborative|content", Source: "recall,merge"},
		},
		{
			name:     "no duplicates",
			existing: Label{Value: "collaborative|content", Source: "recall"},
			incoming: Label{Value: "content", Source: "recall"},
			want:     Label{Value: "collaborative|content", Source: "recall"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeLabel(tt.existing, tt.incoming); got != tt.want {
				t.Errorf("MergeLabel() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLabelValues(t *testing.T) {
	l := Label{Value: "collaborative|content"}
	if got := l.Values(); !slices.Equal(got, []string{"collaborative", "content"}) {
		t.Errorf("Values() = %v", got)
	}
	if got := l.First(); got != "collaborative" {
		t.Errorf("First() = %q", got)
	}
	if got := (Label{}).Values(); got != nil {
		t.Errorf("empty Values() = %v", got)
	}
}
