package title

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/dmfilter/internal/domain"
)

func TestCleaner(t *testing.T) {
	c, err := NewCleaner(DefaultSuffixPattern)
	require.NoError(t, err)

	tests := []struct{ in, want string }{
		{"Cat compilation - bilibili", "Cat compilation"},
		{"Cat compilation_哔哩哔哩 — Bilibili Video", "Cat compilation_哔哩哔哩"},
		{"  Plain title  ", "Plain title"},
		{"A - B - bilibili - extra", "A - B"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Clean(tt.in), tt.in)
	}
}

func TestCleaner_EmptyPatternKeepsSuffix(t *testing.T) {
	c, err := NewCleaner("")
	require.NoError(t, err)
	assert.Equal(t, "x - bilibili", c.Clean(" x - bilibili "))
}

func TestCleaner_InvalidPattern(t *testing.T) {
	_, err := NewCleaner("([")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestStatic(t *testing.T) {
	c, _ := NewCleaner(DefaultSuffixPattern)
	assert.Equal(t, "Hello", NewStatic("Hello - bilibili", c).Title())
}

func TestFile_ReadsLatestTitle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "title.txt")
	require.NoError(t, os.WriteFile(path, []byte("First - bilibili\nignored\n"), 0o644))

	c, _ := NewCleaner(DefaultSuffixPattern)
	f := NewFile(path, c, nil)
	assert.Equal(t, "First", f.Title())

	require.NoError(t, os.WriteFile(path, []byte("Second"), 0o644))
	assert.Equal(t, "Second", f.Title())

	require.NoError(t, os.Remove(path))
	assert.Equal(t, "Second", f.Title(), "keeps the last good title when the file disappears")
}
