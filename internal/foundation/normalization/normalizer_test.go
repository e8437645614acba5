package normalization

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type lineEnd string

const (
	lineEndUnix lineEnd = "\n"
	lineEndDOS  lineEnd = "\r\n"
	lineEndMac  lineEnd = "\r"
)

func newLineEnds() *Normalizer[lineEnd] {
	return NewNormalizer("file format", map[string]lineEnd{
		"unix": lineEndUnix,
		"dos":  lineEndDOS,
		"mac":  lineEndMac,
	}, lineEndUnix)
}

func TestNormalizer_Normalize(t *testing.T) {
	n := newLineEnds()

	tests := []struct {
		name     string
		input    string
		expected lineEnd
	}{
		{"exact match", "dos", lineEndDOS},
		{"case insensitive", "MAC", lineEndMac},
		{"with spaces", "  unix  ", lineEndUnix},
		{"empty uses default", "", lineEndUnix},
		{"unknown uses default", "amiga", lineEndUnix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, n.Normalize(tt.input))
		})
	}
}

func TestNormalizer_Parse(t *testing.T) {
	n := newLineEnds()

	v, err := n.Parse(" DOS ")
	require.NoError(t, err)
	require.Equal(t, lineEndDOS, v)

	v, err = n.Parse("")
	require.NoError(t, err)
	require.Equal(t, lineEndUnix, v)

	_, err = n.Parse("amiga")
	require.Error(t, err)
	require.Contains(t, err.Error(), `invalid file format "amiga"`)
	require.Contains(t, err.Error(), "dos, mac, unix")
}

func TestNormalizer_Aliases(t *testing.T) {
	n := NewNormalizer("charset", map[string]string{
		"utf8":  "utf8",
		"utf-8": "utf8",
	}, "utf8")

	require.True(t, n.IsValid("UTF-8"))
	require.False(t, n.IsValid("latin1"))
	require.Equal(t, []string{"utf-8", "utf8"}, n.ValidKeys())
}

func TestWithCustomNormalizer(t *testing.T) {
	n := WithCustomNormalizer("level", map[string]int{"WARN": 2}, 0, strings.ToUpper)

	require.Equal(t, 2, n.Normalize("warn"))
	require.Equal(t, 0, n.Default())
}
