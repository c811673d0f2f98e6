package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingTable(t *testing.T) {
	t.Run("add rejects a duplicate identifier", func(t *testing.T) {
		pt := newPendingTable()
		_, cancel := context.WithCancel(context.Background())
		defer cancel()

		require.True(t, pt.add("7", cancel))
		assert.False(t, pt.add("7", cancel))
		assert.Equal(t, 1, pt.size())
	})

	t.Run("cancel reports in-flight time and keeps the entry", func(t *testing.T) {
		pt := newPendingTable()
		ctx, cancel := context.WithCancel(context.Background())
		require.True(t, pt.add("42", cancel))

		time.Sleep(5 * time.Millisecond)
		elapsed, ok := pt.cancel("42")
		require.True(t, ok)
		assert.Greater(t, elapsed, time.Duration(0))
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
		assert.Equal(t, 1, pt.size())

		// The eventual completion removes the entry but suppresses the response.
		mayRespond, ok := pt.complete("42")
		require.True(t, ok)
		assert.False(t, mayRespond)
		assert.Zero(t, pt.size())
	})

	t.Run("cancel of an unknown identifier", func(t *testing.T) {
		pt := newPendingTable()
		_, ok := pt.cancel("nope")
		assert.False(t, ok)
	})

	t.Run("complete removes exactly once", func(t *testing.T) {
		pt := newPendingTable()
		_, cancel := context.WithCancel(context.Background())
		require.True(t, pt.add("1", cancel))

		mayRespond, ok := pt.complete("1")
		assert.True(t, ok)
		assert.True(t, mayRespond)

		_, ok = pt.complete("1")
		assert.False(t, ok)

		// The identifier is reusable once its entry is gone.
		assert.True(t, pt.add("1", cancel))
	})

	t.Run("drain cancels everything", func(t *testing.T) {
		pt := newPendingTable()
		ctxA, cancelA := context.WithCancel(context.Background())
		ctxB, cancelB := context.WithCancel(context.Background())
		require.True(t, pt.add("a", cancelA))
		require.True(t, pt.add("b", cancelB))

		pt.drain()
		assert.ErrorIs(t, ctxA.Err(), context.Canceled)
		assert.ErrorIs(t, ctxB.Err(), context.Canceled)

		mayRespond, ok := pt.complete("a")
		require.True(t, ok)
		assert.False(t, mayRespond)
	})
}

func TestProjectPathFromRootURI(t *testing.T) {
	cases := []struct {
		name string
		uri  string
		want string
		ok   bool
	}{
		{"empty", "", "", false},
		{"file scheme", "file:///srv/proj", "/srv/proj", true},
		{"file scheme with empty path", "file://", "", false},
		{"bare path", "/srv/proj", "/srv/proj", true},
		{"relative path", "proj", "proj", true},
		{"https scheme", "https://example.com/repo", "", false},
		{"ssh scheme", "ssh://host/repo", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := projectPathFromRootURI(tc.uri)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
