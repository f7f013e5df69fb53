package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPickHost(t *testing.T) {
	tests := []struct {
		name    string
		targets []TargetInfo
		want    TargetID
		ok      bool
	}{
		{
			name:    "active target that is not first",
			targets: []TargetInfo{{ID: "a"}, {ID: "b", Active: true}, {ID: "c"}},
			want:    "b",
			ok:      true,
		},
		{
			name:    "none active falls back to first",
			targets: []TargetInfo{{ID: "a"}, {ID: "b"}},
			want:    "a",
			ok:      true,
		},
		{
			name:    "empty ids are skipped",
			targets: []TargetInfo{{ID: "", Active: true}, {ID: ""}, {ID: "c"}},
			want:    "c",
			ok:      true,
		},
		{
			name:    "only empty ids",
			targets: []TargetInfo{{ID: ""}},
		},
		{
			name: "no targets",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PickHost(tt.targets)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
