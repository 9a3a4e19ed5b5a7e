package protocol

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/annel0/tileworld/internal/world"
)

// Текущие версии структур буфера.
const (
	ChunkMapVersion    uint8 = 1
	ChunkFormatVersion uint8 = 2
)

// Версия чанка без масок записанных ячеек; читается, но больше не пишется.
const chunkFormatV1 uint8 = 1

// Размер заголовка карты: Width, Length, версия, TileCount, ChunkCount.
const mapHeaderSize = 4 + 4 + 1 + 4 + 4

// Размер заголовка чанка: ключ, версия, число слоёв.
const chunkHeaderSize = 8 + 1 + 4

var errNilTilemap = errors.New("protocol: nil tilemap")

// ToBinary кодирует карту в little-endian буфер:
//
//	[Width:i32][Length:i32][ChunkMapVersion:u8][TileCount:i32][ChunkCount:i32]
//	затем по каждому чанку в порядке возрастания ключа
//	[ChunkKey:i64][ChunkFormatVersion:u8][LayerCount:i32]
//	и по каждому слою [TileCount:i32][Tile:u32]...[Written:u64]...
//
// Written — маска ячеек, в которые писали: ceil(TileCount/64) слов, бит i слова
// i/64 соответствует ячейке i. В версии чанка 1 маски нет.
func ToBinary(m *world.Tilemap) ([]byte, error) {
	if m == nil {
		return nil, errNilTilemap
	}
	size := m.ChunkSize()
	keys := m.ChunkKeys()

	buf := make([]byte, 0, mapHeaderSize+len(keys)*(chunkHeaderSize+4+4*size.Area()+size.Area()/8+8))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(size.Width)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(size.Length)))
	buf = append(buf, ChunkMapVersion)
	buf = appendCount(buf, m.TileCount())
	buf = appendCount(buf, len(keys))

	for _, k := range keys {
		ch, _ := m.ChunkByKey(k)
		layers := ch.Layers()
		buf = binary.LittleEndian.AppendUint64(buf, uint64(k))
		buf = append(buf, ChunkFormatVersion)
		buf = appendCount(buf, len(layers))
		for _, l := range layers {
			buf = appendCount(buf, l.Len())
			for _, t := range l.Tiles {
				buf = binary.LittleEndian.AppendUint32(buf, t.Pack())
			}
			for _, w := range l.WrittenMask() {
				buf = binary.LittleEndian.AppendUint64(buf, w)
			}
		}
	}
	return buf, nil
}

func appendCount(buf []byte, n int) []byte {
	if n > math.MaxInt32 {
		n = math.MaxInt32
	}
	return binary.LittleEndian.AppendUint32(buf, uint32(int32(n)))
}

// Состояния разбора буфера.
type decodeState int

const (
	stateMapHeader decodeState = iota
	stateMapVersion
	stateCounts
	stateChunkHeader
	stateChunkVersion
	stateLayers
	stateDone
)

// binaryReader — курсор по буферу с проверкой границ.
type binaryReader struct {
	data []byte
	pos  int
}

func (r *binaryReader) remaining() int {
	return len(r.data) - r.pos
}

func (r *binaryReader) need(n int, structure, what string) error {
	if r.remaining() < n {
		return formatErrorf(structure, "truncated at offset %d reading %s (need %d bytes, have %d)",
			r.pos, what, n, r.remaining())
	}
	return nil
}

func (r *binaryReader) u8() uint8 {
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *binaryReader) i32() int32 {
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return int32(v)
}

func (r *binaryReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *binaryReader) u64() uint64 {
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

func (r *binaryReader) i64() int64 {
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return int64(v)
}

// FromBinary восстанавливает карту из буфера ToBinary. Неизвестная версия
// даёт *VersionError, обрезанный или противоречивый буфер даёт *FormatError.
// Опции передаются в world.NewTilemap (общая шина, метрики).
func FromBinary(data []byte, opts ...world.Option) (*world.Tilemap, error) {
	r := &binaryReader{data: data}

	var (
		m          *world.Tilemap
		size       world.ChunkSize
		tileCount  int
		chunksLeft int
		key        world.ChunkKey
		layerCount int
		chunkVer   uint8
		seen       map[world.ChunkKey]struct{}
	)

	state := stateMapHeader
	for state != stateDone {
		switch state {
		case stateMapHeader:
			if err := r.need(8, StructureChunkMap, "chunk size"); err != nil {
				return nil, err
			}
			size = world.ChunkSize{Width: int(r.i32()), Length: int(r.i32())}
			state = stateMapVersion

		case stateMapVersion:
			if err := r.need(1, StructureChunkMap, "version"); err != nil {
				return nil, err
			}
			if v := r.u8(); v != ChunkMapVersion {
				return nil, &VersionError{Structure: StructureChunkMap, Version: v}
			}
			state = stateCounts

		case stateCounts:
			if err := r.need(8, StructureChunkMap, "counters"); err != nil {
				return nil, err
			}
			tileCount = int(r.i32())
			chunksLeft = int(r.i32())
			if tileCount < 0 || chunksLeft < 0 {
				return nil, formatErrorf(StructureChunkMap, "negative counters (tiles %d, chunks %d)", tileCount, chunksLeft)
			}
			if chunksLeft > r.remaining()/chunkHeaderSize {
				return nil, formatErrorf(StructureChunkMap, "chunk count %d exceeds buffer", chunksLeft)
			}
			m = world.NewTilemap(size, opts...)
			seen = make(map[world.ChunkKey]struct{}, chunksLeft)
			state = stateChunkHeader

		case stateChunkHeader:
			if chunksLeft == 0 {
				state = stateDone
				continue
			}
			if err := r.need(8, StructureChunk, "key"); err != nil {
				return nil, err
			}
			key = world.ChunkKey(r.i64())
			if _, dup := seen[key]; dup {
				return nil, formatErrorf(StructureChunk, "duplicate chunk %v", key.Coords())
			}
			seen[key] = struct{}{}
			state = stateChunkVersion

		case stateChunkVersion:
			if err := r.need(1, StructureChunk, "version"); err != nil {
				return nil, err
			}
			chunkVer = r.u8()
			if chunkVer != ChunkFormatVersion && chunkVer != chunkFormatV1 {
				return nil, &VersionError{Structure: StructureChunk, Version: chunkVer}
			}
			if err := r.need(4, StructureChunk, "layer count"); err != nil {
				return nil, err
			}
			layerCount = int(r.i32())
			if layerCount < 0 || layerCount > r.remaining()/4 {
				return nil, formatErrorf(StructureChunk, "chunk %v: bad layer count %d", key.Coords(), layerCount)
			}
			state = stateLayers

		case stateLayers:
			layers := make([][]world.Tile, 0, layerCount)
			var written [][]uint64
			if chunkVer != chunkFormatV1 {
				written = make([][]uint64, 0, layerCount)
			}
			for h := 0; h < layerCount; h++ {
				if err := r.need(4, StructureChunk, "layer tile count"); err != nil {
					return nil, err
				}
				n := int(r.i32())
				if n <= 0 || n > r.remaining()/4 {
					return nil, formatErrorf(StructureChunk, "chunk %v layer %d: bad tile count %d", key.Coords(), h, n)
				}
				tiles := make([]world.Tile, n)
				for i := range tiles {
					tiles[i] = world.UnpackTile(r.u32())
				}
				layers = append(layers, tiles)
				if written == nil {
					continue
				}
				words := (n + 63) / 64
				if err := r.need(8*words, StructureChunk, "written mask"); err != nil {
					return nil, err
				}
				mask := make([]uint64, words)
				for i := range mask {
					mask[i] = r.u64()
				}
				written = append(written, mask)
			}
			ch, err := world.RestoreChunk(key.Coords(), m.ChunkSize().Area(), layers, written)
			if err != nil {
				return nil, &FormatError{Structure: StructureChunk, Reason: err.Error()}
			}
			m.RestoreChunk(key, ch)
			chunksLeft--
			state = stateChunkHeader
		}
	}

	if r.remaining() != 0 {
		return nil, formatErrorf(StructureChunkMap, "%d trailing bytes", r.remaining())
	}
	m.RestoreTileCount(tileCount)
	return m, nil
}
