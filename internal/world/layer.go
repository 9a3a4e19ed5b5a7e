package world

import (
	"fmt"
	"math/bits"
)

// Layer — один срез чанка по высоте: плотный массив Width*Length тайлов.
// Кроме значений слой помнит, в какие ячейки хоть раз писали: на этом
// построен TileCount хранилища.
type Layer struct {
	Tiles   []Tile
	written []uint64
}

// NewLayer создаёт пустой слой на area ячеек.
func NewLayer(area int) *Layer {
	return &Layer{
		Tiles:   make([]Tile, area),
		written: make([]uint64, (area+63)/64),
	}
}

// Len — число ячеек в слое.
func (l *Layer) Len() int {
	return len(l.Tiles)
}

// Get возвращает тайл; индекс вне слоя даёт тайл по умолчанию.
func (l *Layer) Get(i int) Tile {
	if i < 0 || i >= len(l.Tiles) {
		return Tile{}
	}
	return l.Tiles[i]
}

// Set записывает тайл и возвращает true, если в ячейку пишут впервые.
func (l *Layer) Set(i int, t Tile) bool {
	l.Tiles[i] = t
	return l.markWritten(i)
}

// Written сообщает, писали ли в ячейку.
func (l *Layer) Written(i int) bool {
	if i < 0 || i >= len(l.Tiles) {
		return false
	}
	return l.written[i/64]&(1<<(uint(i)%64)) != 0
}

// WrittenCount — число ячеек, в которые писали хотя бы раз.
func (l *Layer) WrittenCount() int {
	n := 0
	for _, w := range l.written {
		n += bits.OnesCount64(w)
	}
	return n
}

func (l *Layer) markWritten(i int) bool {
	word, bit := i/64, uint64(1)<<(uint(i)%64)
	if l.written[word]&bit != 0 {
		return false
	}
	l.written[word] |= bit
	return true
}

// WrittenMask возвращает копию битовой маски записанных ячеек:
// бит i слова i/64 соответствует ячейке i.
func (l *Layer) WrittenMask() []uint64 {
	return append([]uint64(nil), l.written...)
}

// sameMarks сравнивает отметки записи двух слоёв.
func (l *Layer) sameMarks(other *Layer) bool {
	if len(l.written) != len(other.written) {
		return false
	}
	for i, w := range l.written {
		if other.written[i] != w {
			return false
		}
	}
	return true
}

// maskWords — длина битовой маски для слоя из n ячеек.
func maskWords(n int) int {
	return (n + 63) / 64
}

// layerFromTiles восстанавливает слой из снимка. Если маска не сохранена
// (старый формат), записанными считаются непустые ячейки.
func layerFromTiles(tiles []Tile, written []uint64) (*Layer, error) {
	l := &Layer{Tiles: tiles}
	if written == nil {
		l.written = make([]uint64, maskWords(len(tiles)))
		for i, t := range tiles {
			if !t.IsDefault() {
				l.markWritten(i)
			}
		}
		return l, nil
	}

	if len(written) != maskWords(len(tiles)) {
		return nil, fmt.Errorf("written mask has %d words, want %d", len(written), maskWords(len(tiles)))
	}
	if tail := len(tiles) % 64; tail != 0 && written[len(written)-1]>>uint(tail) != 0 {
		return nil, fmt.Errorf("written mask marks cells beyond %d", len(tiles))
	}
	l.written = append([]uint64(nil), written...)
	return l, nil
}
