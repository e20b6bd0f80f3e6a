// Package model defines the data model for the file relay bot.
package model

import (
	"time"
)

// MediaKind is the recognized category of an inbound attachment.
type MediaKind string

const (
	KindDocument  MediaKind = "document"
	KindPhoto     MediaKind = "photo"
	KindVideo     MediaKind = "video"
	KindAudio     MediaKind = "audio"
	KindVoice     MediaKind = "voice"
	KindVideoNote MediaKind = "video_note"
	KindAnimation MediaKind = "animation"
	KindSticker   MediaKind = "sticker"
)

// Label is the human-readable name shown in confirmations.
func (k MediaKind) Label() string {
	switch k {
	case KindDocument:
		return "Document"
	case KindPhoto:
		return "Photo"
	case KindVideo:
		return "Video"
	case KindAudio:
		return "Audio"
	case KindVoice:
		return "Voice"
	case KindVideoNote:
		return "Video Note"
	case KindAnimation:
		return "Animation"
	case KindSticker:
		return "Sticker"
	default:
		return "File"
	}
}

// FallbackExt is the extension used for local copies when the MIME type
// and filename give nothing better.
func (k MediaKind) FallbackExt() string {
	switch k {
	case KindPhoto:
		return ".jpg"
	case KindVideo, KindVideoNote, KindAnimation:
		return ".mp4"
	case KindAudio:
		return ".mp3"
	case KindVoice:
		return ".ogg"
	case KindSticker:
		return ".webp"
	default:
		return ".bin"
	}
}

// Artifact is one stored upload. Records are append-only: created once
// by the upload pipeline and never mutated or deleted afterwards.
type Artifact struct {
	FileID         string    `bson:"file_id" json:"file_id"`
	UploaderID     int64     `bson:"uploader_id" json:"uploader_id"`
	FileName       string    `bson:"file_name" json:"file_name"`
	Kind           MediaKind `bson:"kind" json:"kind"`
	MIME           string    `bson:"mime" json:"mime"`
	FileSize       int64     `bson:"file_size" json:"file_size"`
	RelayMessageID int       `bson:"relay_message_id" json:"relay_message_id"`
	LocalPath      string    `bson:"local_path,omitempty" json:"local_path,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// HasRelayRef reports whether the artifact can be re-served through the
// archive chat.
func (a *Artifact) HasRelayRef() bool {
	return a.RelayMessageID != 0
}
