package world

import (
	"fmt"

	"github.com/annel0/tileworld/internal/vec"
)

// Chunk — столбец слоёв над одним участком Width x Length.
// Слои только добавляются, даже если их содержимое вернулось к значениям по умолчанию.
type Chunk struct {
	Coords vec.Vec2 // Координаты чанка в плоскости XZ

	area   int
	layers []*Layer
}

// NewChunk создаёт пустой чанк. Размер приводится через ClampChunkSize.
func NewChunk(coords vec.Vec2, size ChunkSize) *Chunk {
	return newChunkWithArea(coords, ClampChunkSize(size).Area())
}

func newChunkWithArea(coords vec.Vec2, area int) *Chunk {
	return &Chunk{Coords: coords, area: area}
}

// Area — длина каждого слоя чанка.
func (c *Chunk) Area() int {
	return c.area
}

// LayerCount возвращает число слоёв.
func (c *Chunk) LayerCount() int {
	return len(c.layers)
}

// EnsureLayer достраивает пустые слои до height включительно и возвращает слой height.
func (c *Chunk) EnsureLayer(height int) *Layer {
	if height < 0 {
		panic(fmt.Sprintf("world: negative layer height %d", height))
	}
	for height >= len(c.layers) {
		c.layers = append(c.layers, NewLayer(c.area))
	}
	return c.layers[height]
}

// Layer возвращает слой, если он существует.
func (c *Chunk) Layer(height int) (*Layer, bool) {
	if height < 0 || height >= len(c.layers) {
		return nil, false
	}
	return c.layers[height], true
}

// GetTile возвращает тайл или значение по умолчанию, если слоя нет.
func (c *Chunk) GetTile(localIndex, height int) Tile {
	layer, ok := c.Layer(height)
	if !ok {
		return Tile{}
	}
	return layer.Get(localIndex)
}

// SetTile записывает тайл, при необходимости наращивая слои.
// Возвращает true, если в эту ячейку пишут впервые.
func (c *Chunk) SetTile(localIndex, height int, t Tile) bool {
	if localIndex < 0 || localIndex >= c.area {
		panic(fmt.Sprintf("world: local index %d out of chunk area %d", localIndex, c.area))
	}
	return c.EnsureLayer(height).Set(localIndex, t)
}

// TileSlots — число ячеек, в которые писали, по всем слоям.
func (c *Chunk) TileSlots() int {
	n := 0
	for _, l := range c.layers {
		n += l.WrittenCount()
	}
	return n
}

// Layers возвращает слои снизу вверх. Срез принадлежит чанку.
func (c *Chunk) Layers() []*Layer {
	return c.layers
}

// RestoreChunk собирает чанк из слоёв снимка. Все слои обязаны иметь одну длину;
// area используется только для чанка без слоёв. written — маски записанных ячеек
// по слоям; nil означает, что маски не сохранялись.
func RestoreChunk(coords vec.Vec2, area int, layers [][]Tile, written [][]uint64) (*Chunk, error) {
	if len(layers) > 0 {
		area = len(layers[0])
	}
	if area <= 0 {
		return nil, fmt.Errorf("chunk %v: empty layer", coords)
	}
	if written != nil && len(written) != len(layers) {
		return nil, fmt.Errorf("chunk %v: %d written masks for %d layers", coords, len(written), len(layers))
	}
	ch := newChunkWithArea(coords, area)
	for h, tiles := range layers {
		if len(tiles) != area {
			return nil, fmt.Errorf("chunk %v: layer %d has %d tiles, want %d", coords, h, len(tiles), area)
		}
		var mask []uint64
		if written != nil {
			mask = written[h]
		}
		layer, err := layerFromTiles(tiles, mask)
		if err != nil {
			return nil, fmt.Errorf("chunk %v: layer %d: %w", coords, h, err)
		}
		ch.layers = append(ch.layers, layer)
	}
	return ch, nil
}
