package qdrant

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncateKeepsValidUTF8(t *testing.T) {
	// Multi-byte runes around the cut point must not be split.
	s := strings.Repeat("ы", 10)
	got := truncate(s, 4)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, "ыыыы", got)

	require.Equal(t, "abc", truncate("abc", 4))
	require.Equal(t, "", truncate("", 4))
}

func TestPointIDDeterministic(t *testing.T) {
	a := pointID("doc-1-report.txt-0")
	b := pointID("doc-1-report.txt-0")
	c := pointID("doc-1-report.txt-1")
	require.Equal(t, a.GetUuid(), b.GetUuid())
	require.NotEqual(t, a.GetUuid(), c.GetUuid())
}
