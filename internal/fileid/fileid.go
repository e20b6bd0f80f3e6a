// Package fileid mints and decodes the retrieval tokens handed out for
// every upload.
//
// A token is three base-10 segments joined by underscores:
//
//	<uploader id>_<unix seconds>_<archive message id>
//
// The third segment is the message id assigned by the archive chat when
// the upload is relayed there. The relay assigns ids serially, so two
// concurrent uploads can never mint the same token, and the token stays
// resolvable across restarts because it names external state.
package fileid

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
)

const (
	sep      = "_"
	segments = 3
)

// ErrMalformed is returned by Decode for any token that does not have
// exactly three numeric segments.
var ErrMalformed = errors.New("malformed file id")

// Parts are the decoded fields of a token.
type Parts struct {
	UploaderID     int64
	UploadedAt     int64 // unix seconds
	RelayMessageID int
}

// Mint builds the token for one upload.
func Mint(uploaderID int64, uploadedAt time.Time, relayMessageID int) string {
	return fmt.Sprintf("%d%s%d%s%d",
		uploaderID, sep, uploadedAt.Unix(), sep, relayMessageID)
}

// Decode splits a raw token back into its fields.
//
// This is the validation boundary for every identifier that arrives
// from the outside (deep link, command argument, bare text); it must
// reject junk without panicking.
func Decode(token string) (Parts, error) {
	var parts Parts

	segs := strings.Split(token, sep)
	if len(segs) != segments {
		return parts, errors.Wrapf(ErrMalformed, "want %d segments, got %d", segments, len(segs))
	}

	uploader, err := parseSegment(segs[0])
	if err != nil {
		return parts, errors.Wrap(ErrMalformed, "uploader segment")
	}

	ts, err := parseSegment(segs[1])
	if err != nil {
		return parts, errors.Wrap(ErrMalformed, "timestamp segment")
	}

	msgID, err := parseSegment(segs[2])
	if err != nil {
		return parts, errors.Wrap(ErrMalformed, "message segment")
	}

	parts.UploaderID = uploader
	parts.UploadedAt = ts
	parts.RelayMessageID = int(msgID)
	return parts, nil
}

// Valid reports whether token has the expected shape.
func Valid(token string) bool {
	_, err := Decode(token)
	return err == nil
}

func parseSegment(seg string) (int64, error) {
	if seg == "" || seg != strings.TrimSpace(seg) {
		return 0, errors.Errorf("empty or padded segment %q", seg)
	}

	return strconv.ParseInt(seg, 10, 64)
}
