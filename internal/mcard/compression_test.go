package mcard

import (
	"bytes"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	input := bytes.Repeat([]byte("SQLite format 3\x00 page data "), 4096)

	for _, c := range []Compression{CompressionZstd, CompressionLZ4, CompressionNone} {
		t.Run(string(c), func(t *testing.T) {
			var packed bytes.Buffer
			if err := compress(c, &packed, bytes.NewReader(input)); err != nil {
				t.Fatalf("compress() error = %v", err)
			}
			if c != CompressionNone && packed.Len() >= len(input) {
				t.Errorf("compressed size %d not smaller than input %d", packed.Len(), len(input))
			}

			var out bytes.Buffer
			if err := decompress(&out, &packed); err != nil {
				t.Fatalf("decompress() error = %v", err)
			}
			if !bytes.Equal(out.Bytes(), input) {
				t.Errorf("round trip returned %d bytes, want %d", out.Len(), len(input))
			}
		})
	}
}

func TestDecompressShortInput(t *testing.T) {
	var out bytes.Buffer
	if err := decompress(&out, bytes.NewReader([]byte("ab"))); err != nil {
		t.Fatalf("decompress() error = %v", err)
	}
	if out.String() != "ab" {
		t.Errorf("decompress() = %q, want %q", out.String(), "ab")
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{"", CompressionZstd, false},
		{"zstd", CompressionZstd, false},
		{"lz4", CompressionLZ4, false},
		{"none", CompressionNone, false},
		{"gzip", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCompression(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCompression(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompressUnknown(t *testing.T) {
	var out bytes.Buffer
	if err := compress("brotli", &out, bytes.NewReader([]byte("x"))); err == nil {
		t.Error("compress() with unknown compression should return error")
	}
}
