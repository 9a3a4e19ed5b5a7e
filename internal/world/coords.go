package world

import (
	"math"

	"github.com/annel0/tileworld/internal/vec"
)

// Допустимые размеры стороны чанка. Значения вне диапазона молча исправляются.
const (
	MinChunkDim = 2
	MaxChunkDim = 1024
)

// ChunkSize — размер чанка в тайлах по X (Width) и Z (Length).
type ChunkSize struct {
	Width  int
	Length int
}

// Area — число тайлов в одном слое чанка.
func (s ChunkSize) Area() int {
	return s.Width * s.Length
}

// ClampChunkSize приводит размер к [MinChunkDim, MaxChunkDim] по каждой оси.
func ClampChunkSize(s ChunkSize) ChunkSize {
	return ChunkSize{Width: clampDim(s.Width), Length: clampDim(s.Length)}
}

func clampDim(v int) int {
	if v < MinChunkDim {
		return MinChunkDim
	}
	if v > MaxChunkDim {
		return MaxChunkDim
	}
	return v
}

// GridToChunkCoord возвращает координаты чанка, содержащего ячейку.
// Деление с округлением вниз: (-1,0,0) при ширине 3 попадает в чанк -1, а не 0.
func GridToChunkCoord(grid vec.Vec3, size ChunkSize) vec.Vec2 {
	size = ClampChunkSize(size)
	return vec.Vec2{
		X: vec.FloorDiv(grid.X, size.Width),
		Z: vec.FloorDiv(grid.Z, size.Length),
	}
}

// LocalIndex возвращает индекс ячейки внутри слоя: localZ*Width + localX.
func LocalIndex(grid vec.Vec3, size ChunkSize) int {
	size = ClampChunkSize(size)
	lx := vec.FloorMod(grid.X, size.Width)
	lz := vec.FloorMod(grid.Z, size.Length)
	return lz*size.Width + lx
}

// ChunkOrigin — ячейка с локальными координатами (0,0) на высоте 0.
func ChunkOrigin(c vec.Vec2, size ChunkSize) vec.Vec3 {
	size = ClampChunkSize(size)
	return vec.Vec3{X: c.X * size.Width, Y: 0, Z: c.Z * size.Length}
}

// LocalToGrid обратна паре GridToChunkCoord/LocalIndex.
func LocalToGrid(c vec.Vec2, localIndex, height int, size ChunkSize) vec.Vec3 {
	size = ClampChunkSize(size)
	origin := ChunkOrigin(c, size)
	return vec.Vec3{
		X: origin.X + localIndex%size.Width,
		Y: height,
		Z: origin.Z + localIndex/size.Width,
	}
}

// ChunkKey — ключ чанка в карте хранилища.
//
// Каждая ось кодируется zig-zag в 32 бита (0→0, -1→1, 1→2, -2→3 …), X занимает
// старшее слово, Z — младшее. Схема биективна на всём диапазоне int32 по обеим
// осям; простой сдвиг без смещения склеивал бы отрицательные и положительные
// координаты.
type ChunkKey int64

// ChunkInRange сообщает, помещаются ли обе оси чанка в int32.
func ChunkInRange(c vec.Vec2) bool {
	return c.X >= math.MinInt32 && c.X <= math.MaxInt32 &&
		c.Z >= math.MinInt32 && c.Z <= math.MaxInt32
}

// PackChunkKey упаковывает координаты чанка. Поддерживаемый диапазон осей — int32,
// вне его ключи совпадают; хранилище проверяет диапазон через ChunkInRange.
func PackChunkKey(c vec.Vec2) ChunkKey {
	hi := uint64(zigzag(int32(c.X)))
	lo := uint64(zigzag(int32(c.Z)))
	return ChunkKey(int64(hi<<32 | lo))
}

// UnpackChunkKey обратна PackChunkKey.
func UnpackChunkKey(k ChunkKey) vec.Vec2 {
	u := uint64(k)
	return vec.Vec2{
		X: int(unzigzag(uint32(u >> 32))),
		Z: int(unzigzag(uint32(u))),
	}
}

// Coords — сокращение для UnpackChunkKey.
func (k ChunkKey) Coords() vec.Vec2 {
	return UnpackChunkKey(k)
}

func zigzag(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

func unzigzag(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}
