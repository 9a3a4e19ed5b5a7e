package world

import "fmt"

// Tile — содержимое одной ячейки: индекс тайла и флаги ориентации.
// Нулевое значение — тайл по умолчанию (пустая ячейка).
type Tile struct {
	Index uint16
	Flags uint16
}

// Direction — поворот тайла вокруг вертикальной оси, шаг 90°.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
)

// Биты поля Flags. Остальные биты пользовательские и не трогаются.
const (
	FlagDirectionMask uint16 = 0x3
	FlagFlipX         uint16 = 1 << 2
	FlagFlipZ         uint16 = 1 << 3
)

// Pack упаковывает тайл в uint32: флаги в старших 16 битах, индекс в младших.
func (t Tile) Pack() uint32 {
	return uint32(t.Flags)<<16 | uint32(t.Index)
}

// UnpackTile обратна Pack.
func UnpackTile(v uint32) Tile {
	return Tile{Index: uint16(v), Flags: uint16(v >> 16)}
}

// IsDefault сообщает, совпадает ли тайл со значением по умолчанию.
func (t Tile) IsDefault() bool {
	return t == Tile{}
}

func (t Tile) Direction() Direction {
	return Direction(t.Flags & FlagDirectionMask)
}

func (t Tile) WithDirection(d Direction) Tile {
	t.Flags = t.Flags&^FlagDirectionMask | uint16(d)&FlagDirectionMask
	return t
}

func (t Tile) FlippedX() bool { return t.Flags&FlagFlipX != 0 }
func (t Tile) FlippedZ() bool { return t.Flags&FlagFlipZ != 0 }

// WithFlip выставляет оба бита отражения.
func (t Tile) WithFlip(x, z bool) Tile {
	t.Flags &^= FlagFlipX | FlagFlipZ
	if x {
		t.Flags |= FlagFlipX
	}
	if z {
		t.Flags |= FlagFlipZ
	}
	return t
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

func (t Tile) String() string {
	return fmt.Sprintf("tile(%d, flags=%#04x)", t.Index, t.Flags)
}
