package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanField(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "SPA poilsis", want: "SPA poilsis"},
		{name: "bom and spaces", in: "\ufeff  R\u012bga  ", want: "R\u012bga"},
		{name: "newlines flattened", in: "line one\nline two", want: "line one line two"},
		{name: "typographic quotes", in: "\u201cDream\u201d \u2013 jump", want: "\"Dream\" - jump"},
		{name: "control chars dropped", in: "a\x00b\x07c", want: "abc"},
		{name: "nbsp", in: "10\u00a0EUR", want: "10 EUR"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanField(tc.in))
		})
	}
}

func TestCleanHeader(t *testing.T) {
	assert.Equal(t, "ProgramName", CleanHeader("\ufeffProgramName "))
}

func TestIsLikelyBinary(t *testing.T) {
	dir := t.TempDir()

	text := filepath.Join(dir, "text.csv")
	require.NoError(t, os.WriteFile(text, []byte("a,b\n1,2\n"), 0o600))
	bin := filepath.Join(dir, "bin.csv")
	require.NoError(t, os.WriteFile(bin, []byte{'a', 0, 'b'}, 0o600))

	isBin, err := IsLikelyBinary(text)
	require.NoError(t, err)
	assert.False(t, isBin)

	isBin, err = IsLikelyBinary(bin)
	require.NoError(t, err)
	assert.True(t, isBin)

	_, err = IsLikelyBinary(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
