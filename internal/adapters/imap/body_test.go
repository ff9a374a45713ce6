package imap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextBodyPlain(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@x.example",
		"To: b@y.example",
		"Subject: hello",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"just a plain body",
	}, "\r\n")

	body, err := extractTextBody([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "just a plain body", strings.TrimSpace(body))
}

func TestExtractTextBodyPrefersPlainOverHTML(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@x.example",
		"Subject: multipart",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="SEP"`,
		"",
		"--SEP",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>rendered version</p>",
		"--SEP",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain version",
		"--SEP--",
	}, "\r\n")

	body, err := extractTextBody([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "plain version", strings.TrimSpace(body))
	assert.NotContains(t, body, "rendered version")
}

func TestExtractTextBodyFallsBackToHTML(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@x.example",
		"Subject: html only",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="SEP"`,
		"",
		"--SEP",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>only the html part exists</p>",
		"--SEP--",
	}, "\r\n")

	body, err := extractTextBody([]byte(raw))
	require.NoError(t, err)
	assert.Contains(t, body, "only the html part exists")
}

func TestExtractTextBodySkipsAttachments(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@x.example",
		"Subject: with attachment",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="SEP"`,
		"",
		"--SEP",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"message text",
		"--SEP",
		"Content-Type: application/octet-stream",
		`Content-Disposition: attachment; filename="data.bin"`,
		"",
		"BINARYBYTES",
		"--SEP--",
	}, "\r\n")

	body, err := extractTextBody([]byte(raw))
	require.NoError(t, err)
	assert.Contains(t, body, "message text")
	assert.NotContains(t, body, "BINARYBYTES")
}

func TestExtractTextBodyRejectsGarbage(t *testing.T) {
	_, err := extractTextBody([]byte("\x00\x01not a message"))
	assert.Error(t, err)
}
