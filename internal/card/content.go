package card

import "unicode/utf8"

type contentKind int

const (
	kindBinary contentKind = iota
	kindText
)

// Content is the payload accepted at the API boundary: either text or raw
// bytes. Both forms are stored as a byte buffer.
type Content struct {
	kind contentKind
	data []byte
}

// Text wraps a string payload. The string is stored as its UTF-8 bytes.
func Text(s string) Content {
	return Content{kind: kindText, data: []byte(s)}
}

// Binary wraps a byte payload. The slice is copied.
func Binary(b []byte) Content {
	data := make([]byte, len(b))
	copy(data, b)
	return Content{kind: kindBinary, data: data}
}

// IsText reports whether the payload was supplied as a string.
func (c Content) IsText() bool {
	return c.kind == kindText
}

// Len returns the payload size in bytes.
func (c Content) Len() int {
	return len(c.data)
}

// ValidUTF8 reports whether the payload is valid UTF-8.
func (c Content) ValidUTF8() bool {
	return utf8.Valid(c.data)
}
