// Package compression сжимает буферы снимков перед тем, как они попадут в историю,
// и считает их отпечатки.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Имена преобразований в конфигурации.
const (
	NameNone = "none"
	NameZstd = "zstd"
	NameGzip = "gzip"
)

// Transformer кодирует/декодирует буфер снимка в компактный вид.
// Hash считается по несжатому буферу и нужен только для диагностики.
type Transformer interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(payload []byte) ([]byte, error)
	Hash(data []byte) uint64
}

// Hash — xxhash64 буфера.
func Hash(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// New создаёт преобразование по имени. Пустое имя — без сжатия.
func New(name string) (Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameNone, "passthrough":
		return NewPassthrough(), nil
	case NameZstd:
		return NewZstd()
	case NameGzip:
		return NewGzip(), nil
	default:
		return nil, fmt.Errorf("compression: unknown transformer %q", name)
	}
}

type passthrough struct{}

// NewPassthrough возвращает преобразование без сжатия: буфер копируется как есть.
func NewPassthrough() Transformer { return passthrough{} }

func (passthrough) Name() string { return NameNone }

func (passthrough) Compress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

func (passthrough) Decompress(payload []byte) ([]byte, error) {
	return append([]byte(nil), payload...), nil
}

func (passthrough) Hash(data []byte) uint64 { return Hash(data) }

// zstdTransformer держит кодер и декодер на всё время жизни: EncodeAll/DecodeAll
// не требуют потоков и переиспользуют внутренние буферы.
type zstdTransformer struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstd создаёт zstd-преобразование.
func NewZstd() (Transformer, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("compression: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("compression: zstd decoder: %w", err)
	}
	return &zstdTransformer{encoder: enc, decoder: dec}, nil
}

func (z *zstdTransformer) Name() string { return NameZstd }

func (z *zstdTransformer) Compress(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, make([]byte, 0, len(data)/2+64)), nil
}

func (z *zstdTransformer) Decompress(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	out, err := z.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("compression: zstd decode: %w", err)
	}
	return out, nil
}

func (z *zstdTransformer) Hash(data []byte) uint64 { return Hash(data) }

type gzipTransformer struct{}

// NewGzip создаёт gzip-преобразование.
func NewGzip() Transformer { return gzipTransformer{} }

func (gzipTransformer) Name() string { return NameGzip }

func (gzipTransformer) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipTransformer) Decompress(payload []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("compression: gzip header: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("compression: gzip decode: %w", err)
	}
	return raw, nil
}

func (gzipTransformer) Hash(data []byte) uint64 { return Hash(data) }
