package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/vec"
)

func TestTerrainGeneratorDeterministic(t *testing.T) {
	size := ChunkSize{Width: 8, Length: 8}
	a := NewTerrainGenerator(99).GenerateChunk(vec.Vec2{X: -1, Z: 2}, size)
	b := NewTerrainGenerator(99).GenerateChunk(vec.Vec2{X: -1, Z: 2}, size)
	assert.Equal(t, a, b)
	require.GreaterOrEqual(t, len(a), size.Area(), "каждый столбец имеет хотя бы нижний слой")

	for _, ta := range a {
		assert.Equal(t, vec.Vec2{X: -1, Z: 2}, GridToChunkCoord(ta.Coord, size))
		assert.GreaterOrEqual(t, ta.Coord.Y, 0)
		assert.NotZero(t, ta.Tile.Index)
	}
}

func TestTerrainGeneratorFeedsSetTiles(t *testing.T) {
	size := ChunkSize{Width: 4, Length: 4}
	m := NewTilemap(size)
	batch := NewTerrainGenerator(1).GenerateChunk(vec.Vec2{}, size)

	events := 0
	m.OnModified(func(TilesModified) { events++ })
	require.NoError(t, m.SetTiles(batch))

	assert.Equal(t, 1, events)
	assert.Equal(t, 1, m.ChunkCount())
	assert.Equal(t, len(batch), m.TileCount())
	for i := 0; i < size.Area(); i++ {
		assert.False(t, m.GetTile(LocalToGrid(vec.Vec2{}, i, 0, size)).IsDefault())
	}
}

func TestBiomeFor(t *testing.T) {
	assert.Equal(t, BiomeDeepWater, biomeFor(0.1, 0.5))
	assert.Equal(t, BiomeWater, biomeFor(0.25, 0.5))
	assert.Equal(t, BiomeMountains, biomeFor(0.9, 0.5))
	assert.Equal(t, BiomeDesert, biomeFor(0.5, 0.1))
	assert.Equal(t, BiomeForest, biomeFor(0.5, 0.9))
	assert.Equal(t, BiomePlains, biomeFor(0.5, 0.5))
	assert.Equal(t, TileStone, fillTile(BiomePlains, 0, 2))
	assert.Equal(t, TileDirt, fillTile(BiomePlains, 2, 2))
}
