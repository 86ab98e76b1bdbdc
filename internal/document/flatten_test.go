package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input any
		want  map[string]string
	}{
		{
			name:  "nil input",
			input: nil,
			want:  map[string]string{},
		},
		{
			name:  "empty map",
			input: map[string]any{},
			want:  map[string]string{},
		},
		{
			name:  "bare scalar has no parent key",
			input: "orphan",
			want:  map[string]string{},
		},
		{
			name:  "flat scalars",
			input: map[string]any{"name": "picanha", "price": 12.5, "available": true},
			want:  map[string]string{"name": "picanha", "price": "12.5", "available": "true"},
		},
		{
			name: "nested map gets compound keys",
			input: map[string]any{
				"product": map[string]any{
					"name": "espeto",
					"tags": map[string]any{"origin": "brasil"},
				},
			},
			want: map[string]string{
				"product_name":        "espeto",
				"product_tags_origin": "brasil",
			},
		},
		{
			name:  "list gets indexed keys",
			input: map[string]any{"sizes": []any{"small", "large"}},
			want:  map[string]string{"sizes_0": "small", "sizes_1": "large"},
		},
		{
			name: "date range splits into start and end",
			input: map[string]any{
				"promo": map[string]any{"start": "2026-01-01", "end": "2026-01-31"},
			},
			want: map[string]string{"promo_start": "2026-01-01", "promo_end": "2026-01-31"},
		},
		{
			name: "date range with time zone stays a range",
			input: map[string]any{
				"promo": map[string]any{"start": "2026-01-01", "end": nil, "time_zone": "America/Sao_Paulo"},
			},
			want: map[string]string{"promo_start": "2026-01-01"},
		},
		{
			name: "map with start plus extra keys is a regular map",
			input: map[string]any{
				"promo": map[string]any{"start": "2026-01-01", "discount": 10},
			},
			want: map[string]string{"promo_start": "2026-01-01", "promo_discount": "10"},
		},
		{
			name:  "null values leave no entry",
			input: map[string]any{"name": "espeto", "notes": nil},
			want:  map[string]string{"name": "espeto"},
		},
		{
			name:  "integral float stays clean",
			input: map[string]any{"count": 3.0},
			want:  map[string]string{"count": "3"},
		},
		{
			name: "deeply mixed nesting",
			input: map[string]any{
				"items": []any{
					map[string]any{"name": "frango"},
					[]any{"a", "b"},
				},
			},
			want: map[string]string{
				"items_0_name": "frango",
				"items_1_0":    "a",
				"items_1_1":    "b",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Flatten(tt.input)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlattenNeverPanics(t *testing.T) {
	t.Parallel()

	// Shapes the normalizer might see from undisciplined sources.
	inputs := []any{
		struct{ X int }{1},
		map[string]any{"fn": func() {}},
		[]any{nil, nil},
		map[string]any{"self": map[string]any{"deep": []any{map[string]any{}}}},
	}
	for _, input := range inputs {
		assert.NotPanics(t, func() { _ = Flatten(input) })
	}
}

func TestFileIDStable(t *testing.T) {
	t.Parallel()

	a := FileID("/data/pdf/cardapio.pdf")
	b := FileID("/data/pdf/cardapio.pdf")
	c := FileID("/data/pdf/outro.pdf")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "pdf_")
}
