package id

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonotonic(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = At(at)
	}
	assert.True(t, sort.StringsAreSorted(ids))
	assert.NotEqual(t, ids[0], ids[1])
}

func TestTimeRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 123e6, time.UTC)
	got, ok := Time(At(at))
	require.True(t, ok)
	assert.Equal(t, at, got)

	p := WithPrefix("ses")
	assert.True(t, strings.HasPrefix(p, "ses_"))
	_, ok = Time(p)
	assert.True(t, ok)

	_, ok = Time("nope")
	assert.False(t, ok)
}
