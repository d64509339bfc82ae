package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, time.March, 2, hour, minute, 0, 0, time.UTC)
}

func span(h1, m1, h2, m2 int) Interval {
	return Interval{Start: at(h1, m1), End: at(h2, m2)}
}

func TestInterval_Overlaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", span(9, 0, 10, 0), span(11, 0, 12, 0), false},
		{"adjacent", span(9, 0, 10, 0), span(10, 0, 11, 0), false},
		{"partial", span(9, 0, 10, 30), span(10, 0, 11, 0), true},
		{"nested", span(9, 0, 12, 0), span(10, 0, 11, 0), true},
		{"identical", span(9, 0, 10, 0), span(9, 0, 10, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestInterval_Subtract(t *testing.T) {
	t.Parallel()

	base := span(18, 0, 21, 0)

	t.Run("block inside splits in two", func(t *testing.T) {
		got := base.Subtract(span(19, 0, 20, 0))
		assert.Equal(t, []Interval{span(18, 0, 19, 0), span(20, 0, 21, 0)}, got)
	})

	t.Run("block covering removes", func(t *testing.T) {
		assert.Empty(t, base.Subtract(span(17, 0, 22, 0)))
		assert.Empty(t, base.Subtract(base))
	})

	t.Run("block at head truncates", func(t *testing.T) {
		assert.Equal(t, []Interval{span(19, 0, 21, 0)}, base.Subtract(span(17, 0, 19, 0)))
	})

	t.Run("block at tail truncates", func(t *testing.T) {
		assert.Equal(t, []Interval{span(18, 0, 20, 30)}, base.Subtract(span(20, 30, 23, 0)))
	})

	t.Run("disjoint block keeps interval", func(t *testing.T) {
		assert.Equal(t, []Interval{base}, base.Subtract(span(21, 0, 22, 0)))
	})
}

func TestUnion(t *testing.T) {
	t.Parallel()

	got := Union([]Interval{
		span(13, 0, 14, 0),
		span(9, 0, 10, 0),
		span(9, 30, 11, 0),
		span(11, 0, 12, 0),
		span(15, 0, 15, 0),
	})

	require.Len(t, got, 2)
	assert.Equal(t, span(9, 0, 12, 0), got[0])
	assert.Equal(t, span(13, 0, 14, 0), got[1])
	assert.Nil(t, Union(nil))
}

func TestSubtractAll(t *testing.T) {
	t.Parallel()

	base := []Interval{span(9, 0, 12, 0), span(14, 0, 16, 0)}
	cut := []Interval{span(10, 0, 10, 30), span(10, 15, 11, 0), span(15, 0, 17, 0)}

	got := SubtractAll(base, cut)

	assert.Equal(t, []Interval{
		span(9, 0, 10, 0),
		span(11, 0, 12, 0),
		span(14, 0, 15, 0),
	}, got)

	for _, iv := range got {
		assert.False(t, AnyOverlaps(cut, iv), "interval %s overlaps a cut", iv)
	}
	assert.Equal(t, []Interval{span(9, 0, 12, 0), span(14, 0, 16, 0)}, base, "input must not be mutated")
}

func TestAnyContains(t *testing.T) {
	t.Parallel()

	list := []Interval{span(9, 0, 12, 0)}
	assert.True(t, AnyContains(list, span(9, 0, 12, 0)))
	assert.True(t, AnyContains(list, span(10, 0, 11, 0)))
	assert.False(t, AnyContains(list, span(11, 30, 12, 30)))
}
