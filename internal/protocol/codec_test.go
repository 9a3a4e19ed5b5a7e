package protocol

import (
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/eventbus"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world"
)

func sampleTilemap(t *testing.T) *world.Tilemap {
	t.Helper()
	m := world.NewTilemap(world.ChunkSize{Width: 3, Length: 2})
	require.NoError(t, m.SetTiles([]world.TileAt{
		{Coord: vec.Vec3{X: 0, Y: 0, Z: 0}, Tile: world.Tile{Index: 1}},
		{Coord: vec.Vec3{X: -4, Y: 2, Z: 7}, Tile: world.Tile{Index: 2, Flags: 0x8005}},
		{Coord: vec.Vec3{X: 100, Y: 1, Z: -100}, Tile: world.Tile{Index: 65535, Flags: 65535}},
		{Coord: vec.Vec3{X: 1, Y: 0, Z: 0}, Tile: world.Tile{}},
	}))
	return m
}

func TestBinaryRoundTrip(t *testing.T) {
	m := sampleTilemap(t)

	data, err := ToBinary(m)
	require.NoError(t, err)

	restored, err := FromBinary(data)
	require.NoError(t, err)
	assert.True(t, m.Equal(restored))
	assert.Equal(t, 3, restored.ChunkCount())
	assert.Equal(t, 4, restored.TileCount(), "счётчик ячеек переносится, включая запись значения по умолчанию")
	assert.Equal(t, world.Tile{Index: 2, Flags: 0x8005}, restored.GetTile(vec.Vec3{X: -4, Y: 2, Z: 7}))

	again, err := ToBinary(restored)
	require.NoError(t, err)
	assert.Equal(t, data, again, "кодирование детерминировано")
}

func TestBinaryEmptyTilemap(t *testing.T) {
	m := world.NewTilemap(world.ChunkSize{Width: 16, Length: 8})
	data, err := ToBinary(m)
	require.NoError(t, err)
	assert.Len(t, data, mapHeaderSize)

	restored, err := FromBinary(data)
	require.NoError(t, err)
	assert.Equal(t, world.ChunkSize{Width: 16, Length: 8}, restored.ChunkSize())
	assert.Equal(t, 0, restored.ChunkCount())
	assert.Equal(t, 0, restored.TileCount())
}

func TestBinaryLayout(t *testing.T) {
	m := world.NewTilemap(world.ChunkSize{Width: 2, Length: 2})
	require.NoError(t, m.SetTiles([]world.TileAt{
		{Coord: vec.Vec3{X: 1, Y: 0, Z: 1}, Tile: world.Tile{Index: 0x1234, Flags: 0x0001}},
	}))
	data, err := ToBinary(m)
	require.NoError(t, err)

	le := binary.LittleEndian
	assert.Equal(t, uint32(2), le.Uint32(data[0:]))
	assert.Equal(t, uint32(2), le.Uint32(data[4:]))
	assert.Equal(t, ChunkMapVersion, data[8])
	assert.Equal(t, uint32(1), le.Uint32(data[9:]), "TileCount")
	assert.Equal(t, uint32(1), le.Uint32(data[13:]), "ChunkCount")
	assert.Equal(t, uint64(world.PackChunkKey(vec.Vec2{})), le.Uint64(data[17:]))
	assert.Equal(t, ChunkFormatVersion, data[25])
	assert.Equal(t, uint32(1), le.Uint32(data[26:]), "LayerCount")
	assert.Equal(t, uint32(4), le.Uint32(data[30:]), "тайлов в слое")
	assert.Equal(t, uint32(0x00011234), le.Uint32(data[34+3*4:]), "локальный индекс 3")
	assert.Equal(t, uint64(1<<3), le.Uint64(data[34+4*4:]), "маска записанных ячеек")
	assert.Len(t, data, 34+4*4+8)
}

func TestBinaryVersionErrors(t *testing.T) {
	data, err := ToBinary(sampleTilemap(t))
	require.NoError(t, err)

	bad := append([]byte(nil), data...)
	bad[8] = 9
	_, err = FromBinary(bad)
	var verr *VersionError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, StructureChunkMap, verr.Structure)
	assert.Equal(t, uint8(9), verr.Version)

	bad = append([]byte(nil), data...)
	bad[mapHeaderSize+8] = 9
	_, err = FromBinary(bad)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, StructureChunk, verr.Structure)
	assert.Equal(t, uint8(9), verr.Version)
}

func TestBinaryTruncated(t *testing.T) {
	data, err := ToBinary(sampleTilemap(t))
	require.NoError(t, err)

	for _, n := range []int{0, 3, 8, 12, mapHeaderSize, mapHeaderSize + 5, len(data) - 1} {
		_, err := FromBinary(data[:n])
		var ferr *FormatError
		assert.True(t, errors.As(err, &ferr), "длина %d: %v", n, err)
	}

	_, err = FromBinary(append(append([]byte(nil), data...), 0))
	var ferr *FormatError
	assert.True(t, errors.As(err, &ferr), "лишние байты в конце")
}

func TestBinaryRejectsMismatchedLayers(t *testing.T) {
	m := world.NewTilemap(world.ChunkSize{Width: 2, Length: 2})
	require.NoError(t, m.SetTiles([]world.TileAt{
		{Coord: vec.Vec3{X: 0, Y: 1, Z: 0}, Tile: world.Tile{Index: 1}},
	}))
	data, err := ToBinary(m)
	require.NoError(t, err)

	// Второй слой объявлен на 3 тайла вместо 4: хвост буфера укорачиваем на один тайл
	secondLayer := mapHeaderSize + chunkHeaderSize + 4 + 4*4 + 8
	bad := append([]byte(nil), data[:len(data)-4]...)
	binary.LittleEndian.PutUint32(bad[secondLayer:], 3)

	_, err = FromBinary(bad)
	var ferr *FormatError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, StructureChunk, ferr.Structure)
}

func TestBinaryAfterSetChunkSize(t *testing.T) {
	m := world.NewTilemap(world.ChunkSize{Width: 4, Length: 4})
	require.NoError(t, m.SetTiles([]world.TileAt{{Coord: vec.Vec3{X: 5}, Tile: world.Tile{Index: 3}}}))
	m.SetChunkSize(world.ChunkSize{Width: 2, Length: 2})

	data, err := ToBinary(m)
	require.NoError(t, err)
	restored, err := FromBinary(data)
	require.NoError(t, err)
	assert.True(t, m.Equal(restored), "чанки старого размера переживают сериализацию")
}

func TestJSONRoundTrip(t *testing.T) {
	m := sampleTilemap(t)

	data, err := ToJSON(m)
	require.NoError(t, err)

	restored, err := FromJSON(data)
	require.NoError(t, err)
	assert.True(t, m.Equal(restored))
}

func TestJSONFieldNames(t *testing.T) {
	m := world.NewTilemap(world.ChunkSize{Width: 2, Length: 2})
	require.NoError(t, m.SetTiles([]world.TileAt{{Coord: vec.Vec3{}, Tile: world.Tile{Index: 7, Flags: 2}}}))
	data, err := ToJSON(m)
	require.NoError(t, err)

	doc := jsoniter.Get(data)
	assert.Equal(t, 2, doc.Get("ChunkSize", "Width").ToInt())
	assert.Equal(t, 2, doc.Get("ChunkSize", "Length").ToInt())
	assert.Equal(t, int(ChunkMapVersion), doc.Get("Version").ToInt())
	assert.Equal(t, 1, doc.Get("TileCount").ToInt())
	assert.Equal(t, int(ChunkFormatVersion), doc.Get("Chunks", 0, "Value", "Version").ToInt())
	assert.Equal(t, 1, doc.Get("Chunks", 0, "Value", "Size").ToInt())
	assert.Equal(t, 7, doc.Get("Chunks", 0, "Value", "Layers", 0, "Tiles", 0, "Index").ToInt())
	assert.Equal(t, 2, doc.Get("Chunks", 0, "Value", "Layers", 0, "Tiles", 0, "Flags").ToInt())
	assert.Equal(t, uint64(1), doc.Get("Chunks", 0, "Value", "Layers", 0, "Written", 0).ToUint64())
}

func TestJSONVersionErrors(t *testing.T) {
	_, err := FromJSON([]byte(`{"ChunkSize":{"Width":2,"Length":2},"Version":3,"TileCount":0,"Chunks":[]}`))
	var verr *VersionError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, StructureChunkMap, verr.Structure)
	assert.Equal(t, uint8(3), verr.Version)

	_, err = FromJSON([]byte(`{"ChunkSize":{"Width":2,"Length":2},"Version":1,"TileCount":0,
		"Chunks":[{"Key":0,"Value":{"Version":7,"Size":0,"Layers":[]}}]}`))
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, StructureChunk, verr.Structure)
	assert.Equal(t, uint8(7), verr.Version)
}

func TestJSONMalformed(t *testing.T) {
	cases := map[string]string{
		"обрезанный документ": `{"ChunkSize":{"Width":2`,
		"размер не совпадает":  `{"Version":1,"Chunks":[{"Key":0,"Value":{"Version":1,"Size":2,"Layers":[{"Tiles":[{},{},{},{}]}]}}]}`,
		"разные длины слоёв": `{"Version":1,"Chunks":[{"Key":0,"Value":{"Version":1,"Size":2,
			"Layers":[{"Tiles":[{},{},{},{}]},{"Tiles":[{}]}]}}]}`,
		"повтор ключа": `{"Version":1,"Chunks":[{"Key":0,"Value":{"Version":1,"Size":0,"Layers":[]}},
			{"Key":0,"Value":{"Version":1,"Size":0,"Layers":[]}}]}`,
		"нет маски": `{"ChunkSize":{"Width":2,"Length":2},"Version":1,
			"Chunks":[{"Key":0,"Value":{"Version":2,"Size":1,"Layers":[{"Tiles":[{},{},{},{}]}]}}]}`,
		"маска за пределами слоя": `{"ChunkSize":{"Width":2,"Length":2},"Version":1,
			"Chunks":[{"Key":0,"Value":{"Version":2,"Size":1,"Layers":[{"Tiles":[{},{},{},{}],"Written":[16]}]}}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromJSON([]byte(doc))
			var ferr *FormatError
			assert.True(t, errors.As(err, &ferr), "%v", err)
		})
	}
}

func TestSerializer(t *testing.T) {
	f, err := ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatBinary, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)

	assert.Equal(t, FormatBinary, NewSerializer("yaml").Format())

	m := sampleTilemap(t)
	for _, format := range []Format{FormatBinary, FormatJSON} {
		s := NewSerializer(format)
		data, err := s.Encode(m)
		require.NoError(t, err)

		bus := eventbus.New()
		restored, err := s.Decode(data, world.WithEventBus(bus))
		require.NoError(t, err)
		assert.True(t, m.Equal(restored), format)
		assert.Same(t, bus, restored.Bus())
	}

	_, err = NewSerializer(FormatBinary).Decode([]byte{1, 2})
	var ferr *FormatError
	assert.True(t, errors.As(err, &ferr))
	assert.True(t, strings.Contains(err.Error(), "binary"))

	_, err = NewSerializer(FormatJSON).Encode(nil)
	assert.Error(t, err)
}

// Восстановленная карта должна вести себя как исходная и при дальнейших правках:
// ячейка, стёртая значением по умолчанию, остаётся записанной.
func TestContinueEditingAfterRoundTrip(t *testing.T) {
	codecs := map[string]struct {
		encode func(*world.Tilemap) ([]byte, error)
		decode func([]byte, ...world.Option) (*world.Tilemap, error)
	}{
		"binary": {ToBinary, FromBinary},
		"json":   {ToJSON, FromJSON},
	}
	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			original := world.NewTilemap(world.ChunkSize{Width: 2, Length: 2})
			require.NoError(t, original.SetTiles([]world.TileAt{
				{Coord: vec.Vec3{X: 0, Y: 0, Z: 0}, Tile: world.Tile{Index: 7}},
				{Coord: vec.Vec3{X: 3, Y: 2, Z: -1}, Tile: world.Tile{Index: 8}},
			}))
			require.NoError(t, original.SetTiles([]world.TileAt{
				{Coord: vec.Vec3{X: 0, Y: 0, Z: 0}, Tile: world.Tile{}},
			}))

			data, err := codec.encode(original)
			require.NoError(t, err)
			restored, err := codec.decode(data)
			require.NoError(t, err)
			require.True(t, original.Equal(restored))

			more := []world.TileAt{
				{Coord: vec.Vec3{X: 0, Y: 0, Z: 0}, Tile: world.Tile{Index: 9}},
				{Coord: vec.Vec3{X: 3, Y: 0, Z: -1}, Tile: world.Tile{Index: 1}},
				{Coord: vec.Vec3{X: 3, Y: 2, Z: -1}, Tile: world.Tile{}},
				{Coord: vec.Vec3{X: -7, Y: 1, Z: 5}, Tile: world.Tile{Index: 2}},
			}
			require.NoError(t, original.SetTiles(more))
			require.NoError(t, restored.SetTiles(more))

			assert.Equal(t, original.TileCount(), restored.TileCount())
			assert.Equal(t, 4, restored.TileCount())
			assert.True(t, original.Equal(restored))
		})
	}
}

func TestDecodeChunkFormatV1(t *testing.T) {
	le := binary.LittleEndian
	buf := le.AppendUint32(nil, 2)
	buf = le.AppendUint32(buf, 2)
	buf = append(buf, ChunkMapVersion)
	buf = le.AppendUint32(buf, 1) // TileCount
	buf = le.AppendUint32(buf, 1) // ChunkCount
	buf = le.AppendUint64(buf, uint64(world.PackChunkKey(vec.Vec2{X: -1, Z: 0})))
	buf = append(buf, chunkFormatV1)
	buf = le.AppendUint32(buf, 1)
	buf = le.AppendUint32(buf, 4)
	for _, v := range []uint32{0, 5, 0, 0} {
		buf = le.AppendUint32(buf, v)
	}

	m, err := FromBinary(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, m.TileCount())
	assert.Equal(t, uint16(5), m.GetTile(vec.Vec3{X: -1, Y: 0, Z: 0}).Index)

	fromJSON, err := FromJSON([]byte(`{"ChunkSize":{"Width":2,"Length":2},"Version":1,"TileCount":1,
		"Chunks":[{"Key":` + strconv.FormatInt(int64(world.PackChunkKey(vec.Vec2{X: -1})), 10) + `,
		"Value":{"Version":1,"Size":1,"Layers":[{"Tiles":[{},{"Index":5},{},{}]}]}}]}`))
	require.NoError(t, err)
	assert.True(t, m.Equal(fromJSON))
}
