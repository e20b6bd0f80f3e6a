package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/Laisky/zap"
	tb "gopkg.in/telebot.v3"

	"github.com/reportcloud/relaybot/internal/fileid"
	"github.com/reportcloud/relaybot/internal/telegram/model"
	"github.com/reportcloud/relaybot/library/log"
)

// attachment is the classified form of an inbound media message.
type attachment struct {
	kind model.MediaKind
	file *tb.File
	name string
	mime string
	size int64
}

// classifyMedia picks exactly one media kind for the message, checked
// in fixed precedence order; the first match wins.
func classifyMedia(m *tb.Message) (*attachment, error) {
	switch {
	case m.Document != nil:
		name := m.Document.FileName
		if name == "" {
			name = "Document"
		}
		return &attachment{
			kind: model.KindDocument,
			file: &m.Document.File,
			name: name,
			mime: m.Document.MIME,
			size: m.Document.FileSize,
		}, nil
	case m.Photo != nil:
		return &attachment{
			kind: model.KindPhoto,
			file: &m.Photo.File,
			name: "Photo",
			mime: "image/jpeg",
			size: m.Photo.FileSize,
		}, nil
	case m.Video != nil:
		name := m.Video.FileName
		if name == "" {
			name = "Video"
		}
		return &attachment{
			kind: model.KindVideo,
			file: &m.Video.File,
			name: name,
			mime: m.Video.MIME,
			size: m.Video.FileSize,
		}, nil
	case m.Audio != nil:
		name := m.Audio.FileName
		if name == "" {
			name = "Audio"
		}
		return &attachment{
			kind: model.KindAudio,
			file: &m.Audio.File,
			name: name,
			mime: m.Audio.MIME,
			size: m.Audio.FileSize,
		}, nil
	case m.Voice != nil:
		return &attachment{
			kind: model.KindVoice,
			file: &m.Voice.File,
			name: "Voice",
			mime: m.Voice.MIME,
			size: m.Voice.FileSize,
		}, nil
	case m.VideoNote != nil:
		return &attachment{
			kind: model.KindVideoNote,
			file: &m.VideoNote.File,
			name: "Video Note",
			size: m.VideoNote.FileSize,
		}, nil
	case m.Animation != nil:
		name := m.Animation.FileName
		if name == "" {
			name = "Animation"
		}
		return &attachment{
			kind: model.KindAnimation,
			file: &m.Animation.File,
			name: name,
			mime: m.Animation.MIME,
			size: m.Animation.FileSize,
		}, nil
	case m.Sticker != nil:
		return &attachment{
			kind: model.KindSticker,
			file: &m.Sticker.File,
			name: "Sticker",
			size: m.Sticker.FileSize,
		}, nil
	default:
		return nil, errors.WithStack(model.ErrUnsupportedMedia)
	}
}

// typeLabel is the kind shown to the uploader, with the declared MIME
// type appended when there is one.
func (a *attachment) typeLabel() string {
	if a.mime == "" {
		return a.kind.Label()
	}

	return fmt.Sprintf("%s (%s)", a.kind.Label(), a.mime)
}

// ext derives the local-copy extension: declared filename first, then
// MIME registry, then the kind's fallback.
func (a *attachment) ext() string {
	if e := filepath.Ext(a.name); e != "" {
		return e
	}
	if a.mime != "" {
		if exts, err := mime.ExtensionsByType(a.mime); err == nil && len(exts) > 0 {
			return exts[len(exts)-1]
		}
	}

	return a.kind.FallbackExt()
}

func (s *Telegram) handleUpload(ctx context.Context) tb.HandlerFunc {
	return func(c tb.Context) error {
		m := c.Message()
		if m.Sender == nil || m.Sender.IsBot {
			return nil
		}
		s.registerUser(ctx, m.Sender.ID)

		art, att, err := s.ingest(ctx, m)
		if err != nil {
			log.Logger.Error("ingest upload",
				zap.Error(err),
				zap.Int64("uploader", m.Sender.ID))
			if errors.Is(err, model.ErrUnsupportedMedia) {
				return s.reply(c, "❌ Unsupported file type.")
			}

			// never leak the cause
			return s.reply(c, "❌ Failed to save file.")
		}

		return s.reply(c, s.confirmation(art, att))
	}
}

// ingest runs the upload pipeline: relay to the archive chat, mint the
// identifier from the relayed message, optionally keep a local copy,
// then record the artifact. Any failure before the record step aborts
// with nothing persisted.
func (s *Telegram) ingest(ctx context.Context, m *tb.Message) (*model.Artifact, *attachment, error) {
	att, err := classifyMedia(m)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	relayed, err := s.bot.Forward(tb.ChatID(s.cfg.ArchiveChatID), m)
	if err != nil {
		return nil, nil, errors.Wrap(err, "relay to archive chat")
	}

	now := gutils.Clock.GetUTCNow()
	id := fileid.Mint(m.Sender.ID, now, relayed.ID)

	var localPath string
	if s.cfg.DownloadEnabled {
		if localPath, err = s.persistLocalCopy(id, att); err != nil {
			return nil, nil, errors.Wrap(err, "persist local copy")
		}
	}

	art := &model.Artifact{
		FileID:         id,
		UploaderID:     m.Sender.ID,
		FileName:       att.name,
		Kind:           att.kind,
		MIME:           att.mime,
		FileSize:       att.size,
		RelayMessageID: relayed.ID,
		LocalPath:      localPath,
		CreatedAt:      now,
	}
	if err = s.store.SaveArtifact(ctx, art); err != nil {
		return nil, nil, errors.Wrapf(err, "record artifact %q", id)
	}

	log.Logger.Info("upload archived",
		zap.String("file_id", id),
		zap.String("kind", string(att.kind)),
		zap.Int64("size", att.size))
	return art, att, nil
}

// persistLocalCopy downloads the attachment into the download dir under
// a name derived from the file id. A failed transfer removes the
// partial file so nothing half-written is ever served.
func (s *Telegram) persistLocalCopy(id string, att *attachment) (string, error) {
	name := id + att.ext()
	path := filepath.Join(s.cfg.DownloadDir, name)

	rc, err := s.bot.File(att.file)
	if err != nil {
		return "", errors.Wrap(err, "fetch file from telegram")
	}
	defer rc.Close()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "create %q", path)
	}

	if _, err = io.Copy(f, rc); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", errors.Wrapf(err, "write %q", path)
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(path)
		return "", errors.Wrapf(err, "close %q", path)
	}

	return name, nil
}

func (s *Telegram) confirmation(art *model.Artifact, att *attachment) string {
	msg := fmt.Sprintf("✅ *File Saved!*\n\n"+
		"📝 *Name:* `%s`\n"+
		"📁 *Type:* %s\n"+
		"📦 *Size:* %s\n"+
		"🆔 *File ID:* `%s`\n\n"+
		"🔗 *Deep Link:* `%s`",
		strings.ReplaceAll(art.FileName, "`", "'"),
		att.typeLabel(),
		FormatFileSize(art.FileSize),
		art.FileID,
		s.deepLink(art.FileID),
	)

	if url := s.directURL(art); url != "" {
		msg += fmt.Sprintf("\n⬇️ *Direct Download:* %s", url)
	}

	return msg
}

func (s *Telegram) deepLink(id string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", s.bot.Me.Username, id)
}
