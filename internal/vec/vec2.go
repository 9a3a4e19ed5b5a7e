package vec

import "fmt"

// Vec2 представляет координаты чанка в плоскости XZ
type Vec2 struct {
	X, Z int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Z: v.Z + other.Z}
}

// Less задаёт детерминированный порядок: сначала X, затем Z
func (v Vec2) Less(other Vec2) bool {
	if v.X != other.X {
		return v.X < other.X
	}
	return v.Z < other.Z
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%d,%d)", v.X, v.Z)
}
