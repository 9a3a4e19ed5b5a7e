package world

import (
	"github.com/annel0/tileworld/internal/eventbus"
)

// Типы событий хранилища в шине.
const (
	EventTilesModified   = "tiles.modified"
	EventTilemapCleared  = "tilemap.cleared"
	EventTilemapReplaced = "tilemap.replaced"

	eventSource = "tilemap"
)

// TilesModified публикуется один раз на весь пакет SetTiles, после всех записей.
// Tiles идут в порядке входного пакета. Более мелкой гранулярности нет.
type TilesModified struct {
	Tiles []TileAt
}

// TilemapCleared публикуется ClearTilemap; это отдельный тип, а не пустой TilesModified.
type TilemapCleared struct {
	Size ChunkSize
}

// TilemapReplaced публикуется, когда живое хранилище целиком заменено снимком
// (undo, redo, перезагрузка). Store — новое хранилище.
type TilemapReplaced struct {
	Reason string
	Store  *Tilemap
}

// OnModified подписывает обработчик на пакеты изменений.
func (m *Tilemap) OnModified(fn func(TilesModified)) eventbus.Subscription {
	return m.bus.Subscribe(eventbus.Filter{Types: []string{EventTilesModified}}, func(ev *eventbus.Envelope) {
		if e, ok := ev.Payload.(TilesModified); ok {
			fn(e)
		}
	})
}

// OnCleared подписывает обработчик на полную очистку.
func (m *Tilemap) OnCleared(fn func(TilemapCleared)) eventbus.Subscription {
	return m.bus.Subscribe(eventbus.Filter{Types: []string{EventTilemapCleared}}, func(ev *eventbus.Envelope) {
		if e, ok := ev.Payload.(TilemapCleared); ok {
			fn(e)
		}
	})
}

// OnReplaced подписывает обработчик на замену хранилища снимком.
// Подписка живёт в шине, поэтому переживает саму замену.
func (m *Tilemap) OnReplaced(fn func(TilemapReplaced)) eventbus.Subscription {
	return m.bus.Subscribe(eventbus.Filter{Types: []string{EventTilemapReplaced}}, func(ev *eventbus.Envelope) {
		if e, ok := ev.Payload.(TilemapReplaced); ok {
			fn(e)
		}
	})
}

// AnnounceReplaced сообщает подписчикам, что это хранилище заменило предыдущее.
func (m *Tilemap) AnnounceReplaced(reason string) {
	m.publish(EventTilemapReplaced, TilemapReplaced{Reason: reason, Store: m})
}

func (m *Tilemap) publish(eventType string, payload interface{}) {
	_ = m.bus.Publish(&eventbus.Envelope{
		Source:    eventSource,
		EventType: eventType,
		Payload:   payload,
	})
}
