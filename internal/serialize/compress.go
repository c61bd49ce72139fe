package serialize

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/hugr-lab/restport/internal/msgpack"
)

// Compressor handles ZStandard compression. It is safe for concurrent use.
type Compressor struct {
	encoder *zstd.Encoder
}

// NewCompressor creates a reusable compressor at the default level.
// Caller must call Close when done.
func NewCompressor() (*Compressor, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &Compressor{encoder: encoder}, nil
}

// Compress compresses data.
func (c *Compressor) Compress(data []byte) []byte {
	if len(data) == 0 {
		return []byte{}
	}
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Close releases compressor resources.
func (c *Compressor) Close() error {
	return c.encoder.Close()
}

// Decompress decompresses ZStandard data.
func Decompress(compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return []byte{}, nil
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()

	out, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}

// CompressCatalog compresses serialized catalog data.
func CompressCatalog(data []byte) ([]byte, error) {
	compressor, err := NewCompressor()
	if err != nil {
		return nil, err
	}
	defer compressor.Close()

	return compressor.Compress(data), nil
}

// CompressedContent compresses data and wraps it the way the Airport
// extension expects compressed payloads: a MessagePack array
// [uncompressed length, compressed bytes].
func CompressedContent(data []byte) ([]byte, error) {
	compressed, err := CompressCatalog(data)
	if err != nil {
		return nil, err
	}
	return msgpack.Encode([]any{uint32(len(data)), string(compressed)})
}

// DecodeCompressedContent reverses CompressedContent.
func DecodeCompressedContent(body []byte) ([]byte, error) {
	var wrapper struct {
		_msgpack struct{} `msgpack:",as_array"`
		Length   uint32
		Data     string
	}
	if err := msgpack.Decode(body, &wrapper); err != nil {
		return nil, err
	}
	out, err := Decompress([]byte(wrapper.Data))
	if err != nil {
		return nil, err
	}
	if uint32(len(out)) != wrapper.Length {
		return nil, fmt.Errorf("decompressed %d bytes, header says %d", len(out), wrapper.Length)
	}
	return out, nil
}
