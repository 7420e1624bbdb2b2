package storage

import (
	"context"
	"path"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/internal/utils"
)

const archivePrefix = "agentmail"

type attachmentArchive struct {
	storage interfaces.StorageService
}

func NewAttachmentArchive(storage interfaces.StorageService) interfaces.AttachmentArchive {
	return &attachmentArchive{storage: storage}
}

// Archive uploads one attachment and returns its public url, or the object key without a CDN
func (a *attachmentArchive) Archive(ctx context.Context, inboxID, messageID, filename, contentType string, data []byte) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentArchive.Archive")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, messageID)

	key := AttachmentKey(inboxID, messageID, filename)
	if err := a.storage.Upload(ctx, key, data, contentType); err != nil {
		tracing.TraceErr(span, err)
		return "", errors.Wrapf(err, "uploading %s", key)
	}

	return utils.FirstNonEmpty(a.storage.GetPublicURL(key), key), nil
}

// AttachmentKey lays objects out as agentmail/<inbox>/<messageId>/<filename>
func AttachmentKey(inboxID, messageID, filename string) string {
	return path.Join(archivePrefix, keySegment(inboxID), keySegment(messageID), keySegment(filename))
}

func keySegment(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "/", "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
