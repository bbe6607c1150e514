package fab

import (
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/qri-io/dataset/compression"
)

// Compressor ids understood by CompressionMeta
const (
	CompressorZstd = "zst"
	CompressorGzip = "gzip"
	CompressorLZ4  = "lz4"
)

// CompressionMeta defines compression settings fab-go understands. A nil
// *CompressionMeta or an empty ID means the chunk is stored raw.
type CompressionMeta struct {
	ID      string `json:"id"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
}

// ParseCompressor builds CompressionMeta from a codec name. "none" and ""
// mean no compression.
func ParseCompressor(name string) (*CompressionMeta, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "zstd", CompressorZstd:
		return &CompressionMeta{ID: CompressorZstd}, nil
	case CompressorGzip, CompressorLZ4:
		return &CompressionMeta{ID: name}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported compressor %q", ErrInvalidArgument, name)
	}
}

func (m *CompressionMeta) id() string {
	if m == nil {
		return ""
	}
	if m.ID == "zstd" {
		return CompressorZstd
	}
	return m.ID
}

// Compressor wraps w so that bytes written are compressed. Callers must
// Close the returned writer to flush it; closing doesn't close w.
func (m *CompressionMeta) Compressor(w io.Writer) (io.WriteCloser, error) {
	switch id := m.id(); id {
	case "":
		return nopWriteCloser{w}, nil
	case CompressorLZ4:
		return lz4.NewWriter(w), nil
	default:
		return compression.Compressor(id, w)
	}
}

// Decompressor wraps r so that reads return decompressed bytes. Closing
// the returned reader closes r.
func (m *CompressionMeta) Decompressor(r io.ReadCloser) (io.ReadCloser, error) {
	switch id := m.id(); id {
	case "":
		return r, nil
	case CompressorLZ4:
		return readCloser{Reader: lz4.NewReader(r), Closer: r}, nil
	default:
		return compression.Decompressor(id, r)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type readCloser struct {
	io.Reader
	io.Closer
}
