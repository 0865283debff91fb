package store

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	want := OrderCursor{CreatedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), ID: uuid.New()}

	got, err := DecodeCursor(EncodeCursor(want))
	require.NoError(t, err)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, want.ID, got.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, raw := range []string{
		"%%%",
		base64.RawURLEncoding.EncodeToString([]byte("not json")),
		base64.RawURLEncoding.EncodeToString([]byte(`{"id":"` + uuid.NewString() + `"}`)),
	} {
		_, err := DecodeCursor(raw)
		assert.ErrorIs(t, err, ErrInvalidCursor, raw)
	}
}

func TestEmptyCursorPrecedesEverything(t *testing.T) {
	start, err := DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, start.Before(time.Now(), uuid.Max))
}

func TestCursorBeforeBreaksTiesOnID(t *testing.T) {
	at := time.Now()
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("f0000000-0000-0000-0000-000000000000")
	c := OrderCursor{CreatedAt: at, ID: high}

	assert.True(t, c.Before(at, low))
	assert.False(t, c.Before(at, high))
	assert.False(t, c.Before(at.Add(time.Millisecond), low))
	assert.True(t, c.Before(at.Add(-time.Millisecond), uuid.Max))
}

func TestNewCursorPage(t *testing.T) {
	key := func(n int) OrderCursor {
		return OrderCursor{CreatedAt: time.Unix(int64(n), 0), ID: uuid.Nil}
	}

	page := NewCursorPage([]int{5, 4, 3}, 2, key)
	assert.True(t, page.HasMore)
	assert.Equal(t, []int{5, 4}, page.Items)
	next, err := DecodeCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.CreatedAt.Unix())

	page = NewCursorPage([]int{2, 1}, 2, key)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
}

func TestNewOffsetPage(t *testing.T) {
	assert.Equal(t, 3, NewOffsetPage(nil, 21, 1, 10).TotalPages)
	assert.Equal(t, 2, NewOffsetPage(nil, 20, 1, 10).TotalPages)
	assert.Equal(t, 0, NewOffsetPage(nil, 0, 1, 10).TotalPages)
}
