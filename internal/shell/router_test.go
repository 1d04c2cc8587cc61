package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_NavigateAndBack(t *testing.T) {
	r := NewRouter("")
	assert.Equal(t, "/", r.CurrentPath())

	r.Navigate("forms/")
	r.Navigate("/forms")
	r.Navigate("/files")
	assert.Equal(t, []string{"/", "/forms", "/files"}, r.History())

	path, ok := r.Back()
	require.True(t, ok)
	assert.Equal(t, "/forms", path)

	_, ok = r.Back()
	require.True(t, ok)
	_, ok = r.Back()
	assert.False(t, ok)
	assert.Equal(t, "/", r.CurrentPath())
}

func TestRouter_WatchKeepsLatestPath(t *testing.T) {
	r := NewRouter("/")
	ch, stop := r.Watch()

	r.Navigate("/a")
	r.Navigate("/b")
	assert.Equal(t, "/b", <-ch)

	stop()
	stop()
	_, open := <-ch
	assert.False(t, open)

	r.Navigate("/c")
}
