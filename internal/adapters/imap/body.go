package imap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// extractTextBody decodes a raw RFC 5322 message and returns its inline text
// content. text/plain parts win over text/html; attachments are skipped.
func extractTextBody(raw []byte) (string, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to create mail reader: %w", err)
	}

	var plain, fallback strings.Builder
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep whatever decoded before the malformed part
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		content, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		contentType, _, _ := header.ContentType()
		switch contentType {
		case "text/plain":
			plain.Write(content)
		default:
			if fallback.Len() == 0 {
				fallback.Write(content)
			}
		}
	}

	if plain.Len() > 0 {
		return plain.String(), nil
	}
	return fallback.String(), nil
}
