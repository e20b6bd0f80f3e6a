package fileid

import (
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"
)

func TestMintDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		name     string
		uploader int64
		msgID    int
	}{
		{"regular user", 5973278509, 42},
		{"small ids", 1, 1},
		{"negative chat style id", -1002627719555, 987654},
		{"zero message id", 77, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token := Mint(tc.uploader, now, tc.msgID)

			parts, err := Decode(token)
			require.NoError(t, err)
			require.Equal(t, tc.uploader, parts.UploaderID)
			require.Equal(t, now.Unix(), parts.UploadedAt)
			require.Equal(t, tc.msgID, parts.RelayMessageID)
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"one segment", "123"},
		{"two segments", "123_456"},
		{"four segments", "1_2_3_4"},
		{"non numeric tail", "12_34_abc"},
		{"non numeric head", "user_1715938200_9"},
		{"empty middle segment", "12__34"},
		{"trailing separator", "1_2_3_"},
		{"spaces inside", "1_ 2_3"},
		{"float segment", "1_2.5_3"},
		{"plain chat text", "hello there"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.token)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrMalformed))
			require.False(t, Valid(tc.token))
		})
	}
}

func TestDistinctRelayIDsMintDistinctTokens(t *testing.T) {
	t.Parallel()

	// Same uploader, same second: the relay message id alone must keep
	// the tokens apart.
	now := time.Now()
	seen := map[string]struct{}{}
	for msgID := 1; msgID <= 1000; msgID++ {
		token := Mint(42, now, msgID)
		_, dup := seen[token]
		require.False(t, dup, "token %q minted twice", token)
		seen[token] = struct{}{}
	}
}

func TestLegacyCounterTokensStillDecode(t *testing.T) {
	t.Parallel()

	// Earlier deployments issued <uploader>_<ts>_<per-user counter>
	// tokens. Same arity, so they decode; whether they resolve is up to
	// the store.
	parts, err := Decode("42_1715938200_7")
	require.NoError(t, err)
	require.Equal(t, int64(42), parts.UploaderID)
	require.Equal(t, 7, parts.RelayMessageID)
}
