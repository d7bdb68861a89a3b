package watcher

import (
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
)

func TestIsRelevant(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{{
		name: "write",
		ev:   fsnotify.Event{Name: "/filters/1.txt", Op: fsnotify.Write},
		want: true,
	}, {
		name: "rename",
		ev:   fsnotify.Event{Name: "/filters/filters.json", Op: fsnotify.Rename},
		want: true,
	}, {
		name: "chmod",
		ev:   fsnotify.Event{Name: "/filters/1.txt", Op: fsnotify.Chmod},
		want: false,
	}, {
		name: "hidden",
		ev:   fsnotify.Event{Name: "/filters/.filters.json12345", Op: fsnotify.Create},
		want: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, isRelevant(tc.ev))
		})
	}
}
