package card

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// OctetStream is the media type of content that could not be classified.
const OctetStream = "application/octet-stream"

// DetectContentType classifies data by magic numbers and, for text, by
// structure. It never fails.
func DetectContentType(data []byte) string {
	if len(data) == 0 {
		return OctetStream
	}
	mtype := mimetype.Detect(data)
	if mtype == nil {
		return OctetStream
	}
	media, _, _ := strings.Cut(mtype.String(), ";")
	media = strings.TrimSpace(media)

	if media == "text/plain" {
		return refineText(data)
	}
	if media == "" {
		return OctetStream
	}
	return media
}

// refineText upgrades plain text that parses as a structured format.
func refineText(data []byte) string {
	if !utf8.Valid(data) {
		return "text/plain"
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return "application/json"
	}
	if bytes.HasPrefix(trimmed, []byte("# ")) || bytes.Contains(trimmed, []byte("\n## ")) {
		return "text/markdown"
	}
	return "text/plain"
}
