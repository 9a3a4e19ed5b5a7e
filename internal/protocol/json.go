package protocol

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/annel0/tileworld/internal/world"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Документ JSON-представления карты. Имена полей фиксированы.
type jsonTilemap struct {
	ChunkSize jsonChunkSize
	Version   uint8
	TileCount int
	Chunks    []jsonChunkEntry
}

type jsonChunkSize struct {
	Width  int
	Length int
}

type jsonChunkEntry struct {
	Key   int64
	Value jsonChunk
}

type jsonChunk struct {
	Version uint8
	Size    int // число слоёв
	Layers  []jsonLayer
}

type jsonLayer struct {
	Tiles   []jsonTile
	Written []uint64 `json:",omitempty"` // маска записанных ячеек, с версии чанка 2
}

type jsonTile struct {
	Index uint16
	Flags uint16
}

// ToJSON кодирует карту в JSON с теми же данными, что и ToBinary.
func ToJSON(m *world.Tilemap) ([]byte, error) {
	if m == nil {
		return nil, errNilTilemap
	}
	size := m.ChunkSize()
	doc := jsonTilemap{
		ChunkSize: jsonChunkSize{Width: size.Width, Length: size.Length},
		Version:   ChunkMapVersion,
		TileCount: m.TileCount(),
		Chunks:    make([]jsonChunkEntry, 0, m.ChunkCount()),
	}
	for _, k := range m.ChunkKeys() {
		ch, _ := m.ChunkByKey(k)
		layers := ch.Layers()
		entry := jsonChunkEntry{
			Key: int64(k),
			Value: jsonChunk{
				Version: ChunkFormatVersion,
				Size:    len(layers),
				Layers:  make([]jsonLayer, len(layers)),
			},
		}
		for h, l := range layers {
			tiles := make([]jsonTile, l.Len())
			for i, t := range l.Tiles {
				tiles[i] = jsonTile{Index: t.Index, Flags: t.Flags}
			}
			entry.Value.Layers[h] = jsonLayer{Tiles: tiles, Written: l.WrittenMask()}
		}
		doc.Chunks = append(doc.Chunks, entry)
	}

	data, err := jsonAPI.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации карты в JSON: %w", err)
	}
	return data, nil
}

// FromJSON восстанавливает карту из документа ToJSON. Ошибки те же, что у FromBinary.
func FromJSON(data []byte, opts ...world.Option) (*world.Tilemap, error) {
	var doc jsonTilemap
	if err := jsonAPI.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Structure: StructureChunkMap, Reason: err.Error()}
	}
	if doc.Version != ChunkMapVersion {
		return nil, &VersionError{Structure: StructureChunkMap, Version: doc.Version}
	}
	if doc.TileCount < 0 {
		return nil, formatErrorf(StructureChunkMap, "negative tile count %d", doc.TileCount)
	}

	m := world.NewTilemap(world.ChunkSize{Width: doc.ChunkSize.Width, Length: doc.ChunkSize.Length}, opts...)
	for _, entry := range doc.Chunks {
		key := world.ChunkKey(entry.Key)
		if _, dup := m.ChunkByKey(key); dup {
			return nil, formatErrorf(StructureChunk, "duplicate chunk %v", key.Coords())
		}
		ver := entry.Value.Version
		if ver != ChunkFormatVersion && ver != chunkFormatV1 {
			return nil, &VersionError{Structure: StructureChunk, Version: ver}
		}
		if entry.Value.Size != len(entry.Value.Layers) {
			return nil, formatErrorf(StructureChunk, "chunk %v: size %d but %d layers",
				key.Coords(), entry.Value.Size, len(entry.Value.Layers))
		}
		layers := make([][]world.Tile, len(entry.Value.Layers))
		var written [][]uint64
		if ver != chunkFormatV1 {
			written = make([][]uint64, len(entry.Value.Layers))
		}
		for h, l := range entry.Value.Layers {
			if written != nil {
				if l.Written == nil {
					return nil, formatErrorf(StructureChunk, "chunk %v layer %d: missing written mask", key.Coords(), h)
				}
				written[h] = l.Written
			}
			tiles := make([]world.Tile, len(l.Tiles))
			for i, t := range l.Tiles {
				tiles[i] = world.Tile{Index: t.Index, Flags: t.Flags}
			}
			layers[h] = tiles
		}
		ch, err := world.RestoreChunk(key.Coords(), m.ChunkSize().Area(), layers, written)
		if err != nil {
			return nil, &FormatError{Structure: StructureChunk, Reason: err.Error()}
		}
		m.RestoreChunk(key, ch)
	}
	m.RestoreTileCount(doc.TileCount)
	return m, nil
}
