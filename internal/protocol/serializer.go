package protocol

import (
	"fmt"
	"strings"

	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/world"
)

// Format — формат буфера снимка.
type Format string

const (
	FormatBinary Format = "binary"
	FormatJSON   Format = "json"
)

// ParseFormat разбирает имя формата из конфигурации. Пустая строка — binary.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatBinary:
		return FormatBinary, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("protocol: unknown format %q", s)
	}
}

// Serializer кодирует и декодирует карту в выбранном формате.
type Serializer struct {
	format Format
	logger *logging.Logger
}

// NewSerializer создаёт сериализатор. Неизвестный формат заменяется на binary.
func NewSerializer(format Format) *Serializer {
	if format != FormatJSON {
		format = FormatBinary
	}
	return &Serializer{format: format, logger: logging.GetProtocolLogger()}
}

// Format возвращает формат сериализатора.
func (s *Serializer) Format() Format {
	return s.format
}

// Encode сериализует карту.
func (s *Serializer) Encode(m *world.Tilemap) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if s.format == FormatJSON {
		data, err = ToJSON(m)
	} else {
		data, err = ToBinary(m)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка кодирования карты (%s): %w", s.format, err)
	}
	s.logger.Trace("Карта закодирована: %d байт, %d чанков", len(data), m.ChunkCount())
	return data, nil
}

// Decode восстанавливает карту. Опции передаются в world.NewTilemap.
func (s *Serializer) Decode(data []byte, opts ...world.Option) (*world.Tilemap, error) {
	var (
		m   *world.Tilemap
		err error
	)
	if s.format == FormatJSON {
		m, err = FromJSON(data, opts...)
	} else {
		m, err = FromBinary(data, opts...)
	}
	if err != nil {
		s.logger.LogBufferError(err, data)
		return nil, fmt.Errorf("ошибка декодирования карты (%s): %w", s.format, err)
	}
	return m, nil
}
