package protocol

import "fmt"

// Имена версионируемых структур буфера.
const (
	StructureChunkMap = "ChunkMap"
	StructureChunk    = "Chunk"
)

// VersionError — буфер записан неизвестной версией формата.
type VersionError struct {
	Structure string
	Version   uint8
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("protocol: unsupported %s version %d", e.Structure, e.Version)
}

// FormatError — буфер обрезан или противоречив.
type FormatError struct {
	Structure string
	Reason    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("protocol: malformed %s: %s", e.Structure, e.Reason)
}

func formatErrorf(structure, format string, args ...interface{}) *FormatError {
	return &FormatError{Structure: structure, Reason: fmt.Sprintf(format, args...)}
}
