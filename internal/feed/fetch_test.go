package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExtract(t *testing.T, first string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extract")
	require.NoError(t, os.WriteFile(path, []byte(first+"\nZZ\n"), 0o644))
	return path
}

func hdCard() string {
	c := make([]byte, 80)
	for i := range c {
		c[i] = ' '
	}
	copy(c[0:], "HD")
	copy(c[22:], "0306230200")
	c[46] = 'U'
	return string(c)
}

func TestExtractTimeOf(t *testing.T) {
	got, err := extractTimeOf(writeExtract(t, hdCard()))
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2023, 6, 3, 2, 0, 0, 0, time.UTC)))
}

func TestExtractTimeOfNotCIF(t *testing.T) {
	_, err := extractTimeOf(writeExtract(t, "<html>sign in</html>"))
	assert.Error(t, err)
}

func TestExtractTimeOfEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err := extractTimeOf(path)
	assert.Error(t, err)
}
