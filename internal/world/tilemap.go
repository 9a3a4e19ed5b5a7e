package world

import (
	"errors"
	"fmt"
	"sort"

	"github.com/annel0/tileworld/internal/eventbus"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/metrics"
	"github.com/annel0/tileworld/internal/vec"
)

// ErrNegativeHeight возвращается SetTiles, если в пакете есть ячейка ниже нулевого слоя.
var ErrNegativeHeight = errors.New("world: negative tile height")

// ErrChunkAreaMismatch возвращается SetTiles, если после смены ChunkSize локальный
// индекс не помещается в слои уже существующего чанка.
var ErrChunkAreaMismatch = errors.New("world: local index outside existing chunk")

// ErrCoordinateOutOfRange возвращается SetTiles, если координата чанка не
// помещается в int32 и не может быть закодирована в ChunkKey.
var ErrCoordinateOutOfRange = errors.New("world: chunk coordinate outside int32 range")

// TileAt — тайл вместе с абсолютной координатой.
type TileAt struct {
	Coord vec.Vec3
	Tile  Tile
}

// Tilemap — вся карта: размер чанка и разреженная карта ChunkKey → Chunk.
// Отсутствующий чанк, слой или ячейка читаются как тайл по умолчанию.
//
// Tilemap не потокобезопасен: у карты один владелец, все операции синхронные.
type Tilemap struct {
	size      ChunkSize
	chunks    map[ChunkKey]*Chunk
	tileCount int

	bus     eventbus.EventBus
	metrics *metrics.Recorder
	logger  *logging.Logger
}

// Option настраивает Tilemap при создании.
type Option func(*Tilemap)

// WithEventBus задаёт шину уведомлений. Общая шина позволяет подпискам
// пережить полную замену хранилища снимком.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(m *Tilemap) {
		if bus != nil {
			m.bus = bus
		}
	}
}

// WithMetrics подключает Prometheus-метрики.
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Tilemap) { m.metrics = r }
}

// WithLogger задаёт логгер компонента.
func WithLogger(l *logging.Logger) Option {
	return func(m *Tilemap) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewTilemap создаёт пустую карту. Размер приводится через ClampChunkSize.
func NewTilemap(size ChunkSize, opts ...Option) *Tilemap {
	m := &Tilemap{
		chunks: make(map[ChunkKey]*Chunk),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus == nil {
		m.bus = eventbus.New()
	}
	if m.logger == nil {
		m.logger = logging.GetWorldLogger()
	}
	m.size = m.clamp(size)
	return m
}

// Bus возвращает шину уведомлений карты.
func (m *Tilemap) Bus() eventbus.EventBus {
	return m.bus
}

// ChunkSize возвращает текущий размер чанка.
func (m *Tilemap) ChunkSize() ChunkSize {
	return m.size
}

// SetChunkSize меняет размер чанка БЕЗ перераскладки существующих чанков:
// меняется только то, как вычисляются последующие обращения по координатам.
// Старые данные после этого читаются по новым формулам и могут «переехать».
func (m *Tilemap) SetChunkSize(size ChunkSize) {
	m.size = m.clamp(size)
}

// ChunkCount — число существующих чанков.
func (m *Tilemap) ChunkCount() int {
	return len(m.chunks)
}

// TileCount — число ячеек, в которые хоть раз писали через SetTiles с последней
// очистки. Запись значения по умолчанию счётчик не уменьшает.
func (m *Tilemap) TileCount() int {
	return m.tileCount
}

// GetTile возвращает тайл по координате (по умолчанию, если ячейки нет).
func (m *Tilemap) GetTile(coord vec.Vec3) Tile {
	t, _ := m.lookup(coord)
	return t
}

// GetExistingTiles — разреженный запрос: только координаты, за которыми есть
// чанк и слой. Остальные пропускаются. Порядок входа сохраняется.
func (m *Tilemap) GetExistingTiles(coords []vec.Vec3) []TileAt {
	out := make([]TileAt, 0, len(coords))
	for _, c := range coords {
		if t, ok := m.lookup(c); ok {
			out = append(out, TileAt{Coord: c, Tile: t})
		}
	}
	return out
}

// GetTiles — плотный запрос: по тайлу на каждую координату, в том же порядке.
func (m *Tilemap) GetTiles(coords []vec.Vec3) []Tile {
	out := make([]Tile, len(coords))
	for i, c := range coords {
		out[i], _ = m.lookup(c)
	}
	return out
}

func (m *Tilemap) lookup(coord vec.Vec3) (Tile, bool) {
	cc := GridToChunkCoord(coord, m.size)
	if !ChunkInRange(cc) {
		return Tile{}, false
	}
	ch, ok := m.chunks[PackChunkKey(cc)]
	if !ok {
		return Tile{}, false
	}
	layer, ok := ch.Layer(coord.Y)
	if !ok {
		return Tile{}, false
	}
	idx := LocalIndex(coord, m.size)
	if idx >= layer.Len() {
		return Tile{}, false
	}
	return layer.Get(idx), true
}

// SetTiles записывает пакет в порядке входа и после этого публикует ОДНО событие
// TilesModified со всеми парами. Пакет сначала проверяется целиком: при ошибке
// ничего не записано и событие не публикуется.
func (m *Tilemap) SetTiles(pairs []TileAt) error {
	if len(pairs) == 0 {
		return nil
	}
	for _, p := range pairs {
		if p.Coord.Y < 0 {
			return fmt.Errorf("%w: %v", ErrNegativeHeight, p.Coord)
		}
		cc := GridToChunkCoord(p.Coord, m.size)
		if !ChunkInRange(cc) {
			return fmt.Errorf("%w: %v (chunk %v)", ErrCoordinateOutOfRange, p.Coord, cc)
		}
		if ch, ok := m.chunks[PackChunkKey(cc)]; ok {
			if LocalIndex(p.Coord, m.size) >= ch.Area() {
				return fmt.Errorf("%w: %v (chunk area %d, size %dx%d)",
					ErrChunkAreaMismatch, p.Coord, ch.Area(), m.size.Width, m.size.Length)
			}
		}
	}

	for _, p := range pairs {
		cc := GridToChunkCoord(p.Coord, m.size)
		key := PackChunkKey(cc)
		ch, ok := m.chunks[key]
		if !ok {
			ch = NewChunk(cc, m.size)
			m.chunks[key] = ch
		}
		if ch.SetTile(LocalIndex(p.Coord, m.size), p.Coord.Y, p.Tile) {
			m.tileCount++
		}
	}

	batch := make([]TileAt, len(pairs))
	copy(batch, pairs)

	m.metrics.TilesWritten(len(pairs))
	m.metrics.StoreSize(len(m.chunks), m.tileCount)
	m.publish(EventTilesModified, TilesModified{Tiles: batch})
	return nil
}

// GetLayerCount возвращает число слоёв чанка или 0, если чанка нет.
func (m *Tilemap) GetLayerCount(c vec.Vec2) int {
	if !ChunkInRange(c) {
		return 0
	}
	ch, ok := m.chunks[PackChunkKey(c)]
	if !ok {
		return 0
	}
	return ch.LayerCount()
}

// ClearTilemap отбрасывает все чанки, сбрасывает счётчики, задаёт новый размер
// и публикует TilemapCleared.
func (m *Tilemap) ClearTilemap(newSize ChunkSize) {
	m.size = m.clamp(newSize)
	m.chunks = make(map[ChunkKey]*Chunk)
	m.tileCount = 0

	m.logger.Debug("Карта очищена, размер чанка %dx%d", m.size.Width, m.size.Length)
	m.metrics.TilemapCleared()
	m.metrics.StoreSize(0, 0)
	m.publish(EventTilemapCleared, TilemapCleared{Size: m.size})
}

// Chunk возвращает чанк по координатам.
func (m *Tilemap) Chunk(c vec.Vec2) (*Chunk, bool) {
	if !ChunkInRange(c) {
		return nil, false
	}
	ch, ok := m.chunks[PackChunkKey(c)]
	return ch, ok
}

// ChunkByKey возвращает чанк по ключу.
func (m *Tilemap) ChunkByKey(k ChunkKey) (*Chunk, bool) {
	ch, ok := m.chunks[k]
	return ch, ok
}

// ChunkKeys возвращает ключи, отсортированные по возрастанию.
func (m *Tilemap) ChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(m.chunks))
	for k := range m.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ChunkCoords возвращает координаты чанков, отсортированные по X, затем по Z.
func (m *Tilemap) ChunkCoords() []vec.Vec2 {
	coords := make([]vec.Vec2, 0, len(m.chunks))
	for _, ch := range m.chunks {
		coords = append(coords, ch.Coords)
	}
	sort.Slice(coords, func(i, j int) bool { return coords[i].Less(coords[j]) })
	return coords
}

// ForEachTile обходит все ячейки, в которые писали, в детерминированном порядке
// (чанки по ChunkCoords, затем слои снизу вверх, затем локальный индекс).
// Обход прекращается, если fn вернула false.
//
// Координаты считаются по текущему ChunkSize, как и в GetTile: для каждой
// выданной пары GetTile(Coord) == Tile. После SetChunkSize ячейки старого чанка,
// до которых текущий размер не дотягивается, не выдаются.
func (m *Tilemap) ForEachTile(fn func(TileAt) bool) {
	reach := m.size.Area()
	for _, cc := range m.ChunkCoords() {
		ch := m.chunks[PackChunkKey(cc)]
		for h, layer := range ch.layers {
			for i := range layer.Tiles {
				if i >= reach {
					break
				}
				if !layer.Written(i) {
					continue
				}
				at := TileAt{Coord: LocalToGrid(cc, i, h, m.size), Tile: layer.Tiles[i]}
				if !fn(at) {
					return
				}
			}
		}
	}
}

// Equal сравнивает наблюдаемое состояние: размер чанка, ChunkCount, TileCount,
// число слоёв, значения всех ячеек и отметки записи, от которых зависит
// дальнейший рост TileCount.
func (m *Tilemap) Equal(other *Tilemap) bool {
	if other == nil {
		return false
	}
	if m.size != other.size || m.tileCount != other.tileCount || len(m.chunks) != len(other.chunks) {
		return false
	}
	for k, a := range m.chunks {
		b, ok := other.chunks[k]
		if !ok || a.area != b.area || len(a.layers) != len(b.layers) {
			return false
		}
		for h := range a.layers {
			if !a.layers[h].sameMarks(b.layers[h]) {
				return false
			}
			ta, tb := a.layers[h].Tiles, b.layers[h].Tiles
			for i := range ta {
				if ta[i] != tb[i] {
					return false
				}
			}
		}
	}
	return true
}

// RestoreChunk кладёт восстановленный из снимка чанк без событий и счётчиков.
// Используется только кодеком.
func (m *Tilemap) RestoreChunk(k ChunkKey, ch *Chunk) {
	if ch == nil {
		panic("world: nil chunk")
	}
	m.chunks[k] = ch
}

// RestoreTileCount выставляет TileCount из снимка.
func (m *Tilemap) RestoreTileCount(n int) {
	m.tileCount = n
	m.metrics.StoreSize(len(m.chunks), m.tileCount)
}

func (m *Tilemap) clamp(size ChunkSize) ChunkSize {
	clamped := ClampChunkSize(size)
	if clamped != size {
		m.logger.Debug("Размер чанка %dx%d исправлен на %dx%d", size.Width, size.Length, clamped.Width, clamped.Length)
	}
	return clamped
}
