package world

import (
	"math"
	"testing"

	"github.com/annel0/tileworld/internal/vec"
	"github.com/stretchr/testify/assert"
)

func TestGridToChunkCoordFloorsNegatives(t *testing.T) {
	size := ChunkSize{Width: 3, Length: 4}

	assert.Equal(t, vec.Vec2{X: 0, Z: 0}, GridToChunkCoord(vec.Vec3{X: 0, Y: 0, Z: 0}, size))
	assert.Equal(t, vec.Vec2{X: -1, Z: 0}, GridToChunkCoord(vec.Vec3{X: -1, Y: 0, Z: 0}, size),
		"усечение к нулю дало бы чанк (0,0)")
	assert.Equal(t, vec.Vec2{X: 0, Z: -1}, GridToChunkCoord(vec.Vec3{X: 2, Y: 7, Z: -4}, size))
	assert.Equal(t, vec.Vec2{X: -2, Z: -2}, GridToChunkCoord(vec.Vec3{X: -4, Y: 0, Z: -5}, size))
}

func TestLocalIndex(t *testing.T) {
	size := ChunkSize{Width: 3, Length: 4}

	assert.Equal(t, 0, LocalIndex(vec.Vec3{X: 0, Z: 0}, size))
	assert.Equal(t, 2, LocalIndex(vec.Vec3{X: -1, Z: 0}, size))
	assert.Equal(t, 3*3+2, LocalIndex(vec.Vec3{X: -1, Z: -1}, size))
	assert.Equal(t, 1*3+1, LocalIndex(vec.Vec3{X: 4, Y: 9, Z: 5}, size))
}

func TestLocalToGridInvertsMapping(t *testing.T) {
	size := ChunkSize{Width: 3, Length: 4}
	for x := -7; x <= 7; x++ {
		for z := -9; z <= 9; z++ {
			g := vec.Vec3{X: x, Y: 2, Z: z}
			back := LocalToGrid(GridToChunkCoord(g, size), LocalIndex(g, size), 2, size)
			assert.Equal(t, g, back)
		}
	}
}

func TestClampChunkSize(t *testing.T) {
	assert.Equal(t, ChunkSize{Width: 2, Length: 2}, ClampChunkSize(ChunkSize{Width: 1, Length: 0}))
	assert.Equal(t, ChunkSize{Width: 2, Length: 5}, ClampChunkSize(ChunkSize{Width: -10, Length: 5}))
	assert.Equal(t, ChunkSize{Width: MaxChunkDim, Length: 16}, ClampChunkSize(ChunkSize{Width: 1 << 20, Length: 16}))
}

func TestGridToChunkCoordClampsIllegalSize(t *testing.T) {
	// Нулевой размер не должен приводить к делению на ноль.
	assert.NotPanics(t, func() {
		GridToChunkCoord(vec.Vec3{X: 5, Z: 5}, ChunkSize{})
		LocalIndex(vec.Vec3{X: 5, Z: 5}, ChunkSize{})
	})
	assert.Equal(t, vec.Vec2{X: 2, Z: 2}, GridToChunkCoord(vec.Vec3{X: 5, Z: 5}, ChunkSize{}))
}

func TestChunkKeyRoundTrip(t *testing.T) {
	values := []int{0, 1, -1, 2, -2, 1000, -1000, math.MaxInt32, math.MinInt32, math.MaxInt32 - 1, math.MinInt32 + 1}
	for _, x := range values {
		for _, z := range values {
			c := vec.Vec2{X: x, Z: z}
			assert.Equal(t, c, UnpackChunkKey(PackChunkKey(c)), "ключ для %v", c)
		}
	}
}

func TestChunkKeyDistinguishesSigns(t *testing.T) {
	seen := make(map[ChunkKey]vec.Vec2)
	for x := -20; x <= 20; x++ {
		for z := -20; z <= 20; z++ {
			c := vec.Vec2{X: x, Z: z}
			k := PackChunkKey(c)
			if prev, dup := seen[k]; dup {
				t.Fatalf("ключ %d совпал для %v и %v", k, prev, c)
			}
			seen[k] = c
		}
	}
	assert.Equal(t, ChunkKey(0), PackChunkKey(vec.Vec2{}))
	assert.Equal(t, vec.Vec2{X: -3, Z: 4}, PackChunkKey(vec.Vec2{X: -3, Z: 4}).Coords())
}

func TestChunkInRange(t *testing.T) {
	assert.True(t, ChunkInRange(vec.Vec2{X: math.MaxInt32, Z: math.MinInt32}))
	assert.False(t, ChunkInRange(vec.Vec2{X: math.MaxInt32 + 1, Z: 0}))
	assert.False(t, ChunkInRange(vec.Vec2{X: 0, Z: math.MinInt32 - 1}))
}
