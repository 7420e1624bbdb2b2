package attachments

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/internal/utils"
)

const (
	tempDirName        = "openclaw-agentmail"
	defaultContentType = "application/octet-stream"
	forwardedEmailType = "message/rfc822"
)

type Downloader struct {
	baseDir string
	archive interfaces.AttachmentArchive
	log     logger.Logger
}

// NewDownloader stores files under baseDir, the OS temp dir when empty. archive may be nil.
func NewDownloader(baseDir string, archive interfaces.AttachmentArchive, log logger.Logger) *Downloader {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Downloader{
		baseDir: baseDir,
		archive: archive,
		log:     log,
	}
}

// Download saves every attachment of a message into a fresh directory, one at a time.
// Failures are logged per attachment and the rest are still attempted.
func (d *Downloader) Download(ctx context.Context, client interfaces.AgentMailClient, inboxID, messageID string, list []dto.Attachment) []dto.DownloadedAttachment {
	if len(list) == 0 {
		return nil
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "Downloader.Download")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, messageID)
	span.LogKV("attachments.count", len(list))

	dir := filepath.Join(d.baseDir, tempDirName, uuid.New().String())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		tracing.TraceErr(span, err)
		d.log.Warnf("agentmail: failed to create attachment directory %s: %v", dir, err)
		return nil
	}

	var results []dto.DownloadedAttachment
	for _, a := range list {
		d.log.Debugf("agentmail: downloading attachment %s", utils.FirstNonEmpty(a.Filename, a.AttachmentID))

		saved, err := d.downloadOne(ctx, client, inboxID, messageID, dir, a)
		if err != nil {
			tracing.TraceErr(span, err)
			d.log.Debugf("agentmail: failed to download attachment %s: %v", a.AttachmentID, err)
			continue
		}
		results = append(results, saved...)
	}

	span.LogKV("attachments.saved", len(results))
	return results
}

func (d *Downloader) downloadOne(ctx context.Context, client interfaces.AgentMailClient, inboxID, messageID, dir string, a dto.Attachment) ([]dto.DownloadedAttachment, error) {
	content, err := client.GetAttachment(ctx, inboxID, messageID, a.AttachmentID)
	if err != nil {
		return nil, err
	}

	filename := safeFilename(a.Filename, a.AttachmentID)
	contentType := utils.FirstNonEmpty(a.ContentType, defaultContentType)
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return nil, errors.Wrapf(err, "writing %s", path)
	}
	d.log.Debugf("agentmail: saved attachment to %s", path)

	saved := []dto.DownloadedAttachment{{Path: path, ContentType: contentType, Filename: filename}}

	if strings.EqualFold(contentType, forwardedEmailType) {
		if companion, err := writeForwardedEmailText(path, content); err != nil {
			d.log.Debugf("agentmail: failed to unpack forwarded email %s: %v", filename, err)
		} else {
			saved = append(saved, companion)
		}
	}

	if d.archive != nil {
		key, err := d.archive.Archive(ctx, inboxID, messageID, filename, contentType, content)
		if err != nil {
			d.log.Warnf("agentmail: failed to archive attachment %s: %v", a.AttachmentID, err)
		} else {
			d.log.Debugf("agentmail: archived attachment %s as %s", a.AttachmentID, key)
		}
	}

	return saved, nil
}

func safeFilename(filename, attachmentID string) string {
	name := filepath.Base(strings.TrimSpace(filename))
	if filename == "" || name == "." || name == string(filepath.Separator) || name == ".." {
		return fmt.Sprintf("attachment-%s", attachmentID)
	}
	return name
}

// writeForwardedEmailText renders a message/rfc822 attachment as readable text next to the original
func writeForwardedEmailText(path string, content []byte) (dto.DownloadedAttachment, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(content))
	if err != nil {
		return dto.DownloadedAttachment{}, errors.Wrap(err, "parsing forwarded email")
	}

	body := envelope.Text
	if strings.TrimSpace(body) == "" && envelope.HTML != "" {
		body = utils.HTMLToText(envelope.HTML)
	}

	var sb strings.Builder
	for _, header := range []string{"From", "To", "Cc", "Date", "Subject"} {
		if value := envelope.GetHeader(header); value != "" {
			sb.WriteString(header + ": " + value + "\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(body)
	for _, part := range envelope.Attachments {
		sb.WriteString("\n[attachment: " + utils.FirstNonEmpty(part.FileName, "unnamed") + " (" + part.ContentType + ")]")
	}

	textPath := path + ".txt"
	if err := os.WriteFile(textPath, []byte(sb.String()), 0o600); err != nil {
		return dto.DownloadedAttachment{}, errors.Wrapf(err, "writing %s", textPath)
	}

	return dto.DownloadedAttachment{
		Path:        textPath,
		ContentType: "text/plain",
		Filename:    filepath.Base(textPath),
	}, nil
}
