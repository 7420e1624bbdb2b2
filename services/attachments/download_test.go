package attachments

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/mocks"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type archiveStub struct {
	keys []string
	err  error
}

func (a *archiveStub) Archive(ctx context.Context, inboxID, messageID, filename, contentType string, data []byte) (string, error) {
	key := inboxID + "/" + messageID + "/" + filename
	a.keys = append(a.keys, key)
	return key, a.err
}

func TestDownload_SavesFilesAndSkipsFailures(t *testing.T) {
	// Arrange
	baseDir := t.TempDir()
	client := &mocks.AgentMailClient{}
	client.On("GetAttachment", mock.Anything, "bot@agentmail.to", "msg_1", "att_1").Return([]byte("hello"), nil)
	client.On("GetAttachment", mock.Anything, "bot@agentmail.to", "msg_1", "att_2").Return(nil, assert.AnError)
	client.On("GetAttachment", mock.Anything, "bot@agentmail.to", "msg_1", "att_3").Return([]byte{0x1}, nil)
	archive := &archiveStub{}
	downloader := NewDownloader(baseDir, archive, getLogger())

	// Act
	results := downloader.Download(context.Background(), client, "bot@agentmail.to", "msg_1", []dto.Attachment{
		{AttachmentID: "att_1", Filename: "notes.txt", ContentType: "text/plain"},
		{AttachmentID: "att_2", Filename: "broken.pdf"},
		{AttachmentID: "att_3"},
	})

	// Assert
	require.Len(t, results, 2)
	assert.Equal(t, "notes.txt", results[0].Filename)
	assert.Equal(t, "text/plain", results[0].ContentType)
	assert.Equal(t, "attachment-att_3", results[1].Filename)
	assert.Equal(t, "application/octet-stream", results[1].ContentType)
	assert.Equal(t, filepath.Dir(results[0].Path), filepath.Dir(results[1].Path))
	assert.True(t, strings.HasPrefix(results[0].Path, filepath.Join(baseDir, "openclaw-agentmail")+string(filepath.Separator)))

	content, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
	assert.Len(t, archive.keys, 2)
}

func TestDownload_NoAttachments(t *testing.T) {
	// Arrange
	client := &mocks.AgentMailClient{}
	downloader := NewDownloader(t.TempDir(), nil, getLogger())

	// Act
	results := downloader.Download(context.Background(), client, "bot@agentmail.to", "msg_1", nil)

	// Assert
	assert.Empty(t, results)
	client.AssertNotCalled(t, "GetAttachment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDownload_ArchiveFailureKeepsLocalFile(t *testing.T) {
	// Arrange
	client := &mocks.AgentMailClient{}
	client.On("GetAttachment", mock.Anything, "bot@agentmail.to", "msg_1", "att_1").Return([]byte("x"), nil)
	downloader := NewDownloader(t.TempDir(), &archiveStub{err: assert.AnError}, getLogger())

	// Act
	results := downloader.Download(context.Background(), client, "bot@agentmail.to", "msg_1", []dto.Attachment{{AttachmentID: "att_1", Filename: "x.bin"}})

	// Assert
	assert.Len(t, results, 1)
}

func TestDownload_UnpacksForwardedEmail(t *testing.T) {
	// Arrange
	raw := "From: Bob <bob@example.com>\r\n" +
		"To: jane@good.com\r\n" +
		"Subject: Original request\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Please review the quote.\r\n"
	client := &mocks.AgentMailClient{}
	client.On("GetAttachment", mock.Anything, "bot@agentmail.to", "msg_1", "att_1").Return([]byte(raw), nil)
	downloader := NewDownloader(t.TempDir(), nil, getLogger())

	// Act
	results := downloader.Download(context.Background(), client, "bot@agentmail.to", "msg_1", []dto.Attachment{
		{AttachmentID: "att_1", Filename: "forwarded.eml", ContentType: "message/rfc822"},
	})

	// Assert
	require.Len(t, results, 2)
	assert.Equal(t, "forwarded.eml.txt", results[1].Filename)
	assert.Equal(t, "text/plain", results[1].ContentType)
	text, err := os.ReadFile(results[1].Path)
	require.NoError(t, err)
	assert.Contains(t, string(text), "Subject: Original request")
	assert.Contains(t, string(text), "Please review the quote.")
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "attachment-att_1", safeFilename("", "att_1"))
	assert.Equal(t, "report.pdf", safeFilename("report.pdf", "att_1"))
	assert.Equal(t, "passwd", safeFilename("../../etc/passwd", "att_1"))
	assert.Equal(t, "attachment-att_1", safeFilename("..", "att_1"))
}
