package mcard

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names the stream compression applied to snapshots.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// ParseCompression parses a compression name. An empty name means zstd.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionZstd:
		return CompressionZstd, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	case CompressionNone:
		return CompressionNone, nil
	default:
		return "", fmt.Errorf("unknown compression: %q", name)
	}
}

// compress copies src to dst through the named compressor.
func compress(c Compression, dst io.Writer, src io.Reader) error {
	switch c {
	case CompressionZstd:
		zw, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("creating zstd writer: %w", err)
		}
		if _, err := io.Copy(zw, src); err != nil {
			zw.Close()
			return fmt.Errorf("zstd compressing: %w", err)
		}
		return zw.Close()
	case CompressionLZ4:
		lw := lz4.NewWriter(dst)
		if _, err := io.Copy(lw, src); err != nil {
			lw.Close()
			return fmt.Errorf("lz4 compressing: %w", err)
		}
		return lw.Close()
	case CompressionNone:
		_, err := io.Copy(dst, src)
		return err
	default:
		return fmt.Errorf("unknown compression: %q", c)
	}
}

// decompress copies src to dst, picking the decompressor from the frame
// magic. Input without a known magic is copied unchanged.
func decompress(dst io.Writer, src io.Reader) error {
	br := bufio.NewReader(src)
	magic, _ := br.Peek(4)

	switch {
	case bytes.Equal(magic, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		if _, err := io.Copy(dst, zr); err != nil {
			return fmt.Errorf("zstd decompressing: %w", err)
		}
		return nil
	case bytes.Equal(magic, lz4Magic):
		if _, err := io.Copy(dst, lz4.NewReader(br)); err != nil {
			return fmt.Errorf("lz4 decompressing: %w", err)
		}
		return nil
	default:
		_, err := io.Copy(dst, br)
		return err
	}
}
