package util

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const sniffLength = 512

// SniffMIME detects the content type from the first 512 bytes of r. The
// returned reader replays those bytes followed by the rest of r.
func SniffMIME(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	head = head[:n]

	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), r), nil
}

// MIMEFromName guesses a content type from the file extension.
func MIMEFromName(name string) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

// PreferredMIME keeps the sniffed type unless sniffing fell back to
// application/octet-stream and the extension is known.
func PreferredMIME(sniffed string, name string) string {
	if sniffed != "" && sniffed != "application/octet-stream" {
		return sniffed
	}
	return MIMEFromName(name)
}

func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}
