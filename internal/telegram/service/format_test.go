package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatFileSize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		size int64
		want string
	}{
		{0, "Unknown"},
		{-1, "Unknown"},
		{1, "1.00 B"},
		{1023, "1023.00 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{2048, "2.00 KB"},
		{1073741824, "1.00 GB"},
		{1099511627776, "1.00 TB"},
		{1125899906842624, "1.00 PB"},
		// beyond PB stays in PB
		{1 << 60, "1024.00 PB"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, FormatFileSize(tc.size), "size %d", tc.size)
	}
}

func TestEscapeMsg(t *testing.T) {
	t.Parallel()

	require.Equal(t, "my\\_report\\*final\\*.pdf", escapeMsg("my_report*final*.pdf"))
	require.Equal(t, "'code'", escapeMsg("`code`"))
	require.Equal(t, "\\[a\\]\\(b\\)", escapeMsg("[a](b)"))
	require.Equal(t, "plain.txt", escapeMsg("plain.txt"))
}
