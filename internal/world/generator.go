package world

import (
	"math/rand"

	"github.com/annel0/tileworld/internal/util"
	"github.com/annel0/tileworld/internal/vec"
)

// BiomeType представляет тип биома
type BiomeType int

const (
	BiomePlains BiomeType = iota
	BiomeDesert
	BiomeForest
	BiomeMountains
	BiomeWater
	BiomeDeepWater
)

// Индексы тайлов, которыми генератор заполняет столбцы.
const (
	TileDeepWater uint16 = iota + 1
	TileWater
	TileSand
	TileDirt
	TileGrass
	TileStone
	TileTree
)

// Пороги высот для генерации
const (
	DeepWaterMax    = 0.20 // Ниже - глубинная вода
	ShallowWaterMax = 0.30 // Ниже - мелководье
	MountainStart   = 0.80 // Выше - горы
)

// TerrainGenerator заполняет чанки столбцами тайлов по шуму Перлина.
// Используется для быстрого наполнения карты тестовым ландшафтом.
type TerrainGenerator struct {
	Seed          int64
	NoiseScale    float64 // Масштаб шума высоты
	BiomeScale    float64 // Масштаб шума биомов
	MaxHeight     int     // Самый высокий слой столбца
	ForestDensity float64 // Шанс дерева в лесу

	height *util.Noise
	biome  *util.Noise
}

// NewTerrainGenerator создаёт генератор с настройками по умолчанию
func NewTerrainGenerator(seed int64) *TerrainGenerator {
	return &TerrainGenerator{
		Seed:          seed,
		NoiseScale:    0.05,
		BiomeScale:    0.02,
		MaxHeight:     4,
		ForestDensity: 0.15,
		height:        util.NewNoise(seed),
		biome:         util.NewNoise(seed + 42),
	}
}

// GenerateChunk возвращает пакет записей для всего чанка c. Пакет детерминирован
// для пары (Seed, c) и готов для Tilemap.SetTiles.
func (g *TerrainGenerator) GenerateChunk(c vec.Vec2, size ChunkSize) []TileAt {
	size = ClampChunkSize(size)
	chunkSeed := g.Seed + int64(c.X*31) + int64(c.Z*17)
	rng := rand.New(rand.NewSource(chunkSeed))

	out := make([]TileAt, 0, size.Area()*2)
	for i := 0; i < size.Area(); i++ {
		ground := LocalToGrid(c, i, 0, size)
		h := g.height.Noise2D(float64(ground.X)*g.NoiseScale, float64(ground.Z)*g.NoiseScale)
		b := g.biome.Noise2D(float64(ground.X)*g.BiomeScale, float64(ground.Z)*g.BiomeScale)
		biome := biomeFor(h, b)

		top := int(h * float64(g.MaxHeight))
		if biome == BiomeWater || biome == BiomeDeepWater {
			top = 0
		}
		for y := 0; y <= top; y++ {
			t := Tile{Index: fillTile(biome, y, top)}
			if y == top {
				t = t.WithDirection(Direction(rng.Intn(4)))
			}
			out = append(out, TileAt{Coord: vec.Vec3{X: ground.X, Y: y, Z: ground.Z}, Tile: t})
		}
		if biome == BiomeForest && rng.Float64() < g.ForestDensity {
			out = append(out, TileAt{Coord: vec.Vec3{X: ground.X, Y: top + 1, Z: ground.Z}, Tile: Tile{Index: TileTree}})
		}
	}
	return out
}

// fillTile выбирает тайл слоя y в столбце высотой top
func fillTile(biome BiomeType, y, top int) uint16 {
	switch biome {
	case BiomeDeepWater:
		return TileDeepWater
	case BiomeWater:
		return TileWater
	case BiomeMountains:
		return TileStone
	}
	if y < top {
		return TileStone
	}
	switch biome {
	case BiomeDesert:
		return TileSand
	case BiomeForest:
		return TileGrass
	default:
		return TileDirt
	}
}

// biomeFor определяет тип биома на основе значений шума
func biomeFor(height, biomeValue float64) BiomeType {
	// Водные биомы в низинах
	if height < DeepWaterMax {
		return BiomeDeepWater
	}
	if height < ShallowWaterMax {
		return BiomeWater
	}

	// Горные биомы на возвышенностях
	if height > MountainStart {
		return BiomeMountains
	}

	// Шум биомов лежит в [0, 1]
	if biomeValue < 0.35 {
		return BiomeDesert
	} else if biomeValue > 0.65 {
		return BiomeForest
	}

	return BiomePlains
}
