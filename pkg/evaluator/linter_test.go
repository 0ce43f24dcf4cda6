package evaluator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinterScoring(t *testing.T) {
	config := map[string]any{
		"error_patterns":   []any{"<script", `onerror\s*=`},
		"warning_patterns": []any{`style\s*=`},
	}

	tests := []struct {
		name     string
		artifact string
		want     float64
	}{
		{
			name:     "clean input scores 100",
			artifact: "<html><body><p>fine</p></body></html>",
			want:     100,
		},
		{
			name:     "empty input scores 100",
			artifact: "",
			want:     100,
		},
		{
			name:     "one error one warning",
			artifact: `<script>x</script><div style="color:red">`,
			want:     88, // 100 - 10 - 2
		},
		{
			name:     "repeated matches each count",
			artifact: `<script></script><script></script>`,
			want:     80,
		},
		{
			name:     "score clamps at zero",
			artifact: repeatString("<script>", 15),
			want:     0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewLinterHandler().Run(context.Background(), []byte(tt.artifact), config)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, result.Score, 1e-9)
		})
	}
}

func TestLinterNoPatternsConfigured(t *testing.T) {
	result, err := NewLinterHandler().Run(context.Background(), []byte("<script>anything</script>"), nil)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, result.Score, 1e-9)
}

func TestLinterInvalidConfig(t *testing.T) {
	_, err := NewLinterHandler().Run(context.Background(), []byte("x"), map[string]any{
		"error_patterns": "not-a-list",
	})
	assert.Error(t, err)

	_, err = NewLinterHandler().Run(context.Background(), []byte("x"), map[string]any{
		"error_patterns": []any{"(unclosed"},
	})
	assert.Error(t, err)
}

func repeatString(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
