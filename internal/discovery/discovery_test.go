package discovery_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aryankumar/testfleet/internal/discovery"
)

func makeTree(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("executable bits are not meaningful on windows")
	}
	dir := t.TempDir()
	files := map[string]os.FileMode{
		"foo_test":        0o755,
		"bar_test":        0o755,
		"notes_test":      0o644,
		"helper":          0o755,
		"sub/baz_test":    0o755,
		"sub/deep/q_test": 0o700,
	}
	for name, mode := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), mode))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir_test"), 0o755))
	return dir
}

func TestFind(t *testing.T) {
	dir := makeTree(t)

	var testCases = []struct {
		scenario string
		patterns []string
		then     []string
	}{
		{
			scenario: "default pattern",
			then:     []string{"bar_test", "foo_test"},
		},
		{
			scenario: "recursive",
			patterns: []string{"**/*_test"},
			then:     []string{"bar_test", "foo_test", "sub/baz_test", "sub/deep/q_test"},
		},
		{
			scenario: "overlapping patterns are deduplicated",
			patterns: []string{"*_test", "foo*", "helper"},
			then:     []string{"bar_test", "foo_test", "helper"},
		},
		{
			scenario: "no match",
			patterns: []string{"*.bin"},
			then:     nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			got, err := discovery.Find(dir, tc.patterns)
			require.NoError(t, err)
			require.Equal(t, tc.then, got)
		})
	}
}

func TestFindErrors(t *testing.T) {
	dir := makeTree(t)

	_, err := discovery.Find(dir, []string{"[unclosed"})
	require.ErrorIs(t, err, discovery.ErrBadPattern)

	_, err = discovery.Find(filepath.Join(dir, "missing"), nil)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = discovery.Find(filepath.Join(dir, "foo_test"), nil)
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	dir := makeTree(t)

	got, err := discovery.Resolve(dir, []string{"./foo_test", "sub/baz_test", "foo_test"})
	require.NoError(t, err)
	require.Equal(t, []string{"foo_test", "sub/baz_test"}, got)

	_, err = discovery.Resolve(dir, []string{"notes_test"})
	require.Error(t, err)

	_, err = discovery.Resolve(dir, []string{"../escape_test"})
	require.Error(t, err)

	_, err = discovery.Resolve(dir, []string{"missing_test"})
	require.ErrorIs(t, err, os.ErrNotExist)
}
