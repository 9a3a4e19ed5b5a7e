package eventbus

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Envelope описывает универсальный контейнер события.
type Envelope struct {
	ID        string            // Уникальный идентификатор (UUID), заполняется при публикации.
	Timestamp time.Time         // Время публикации (UTC).
	Source    string            // Имя компонента-источника.
	EventType string            // Тип события (tiles.modified, tilemap.cleared…).
	Payload   interface{}       // Типизированная полезная нагрузка.
	Metadata  map[string]string // Произвольные метаданные.
}

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types   []string // Если пусто — все типы.
	Sources []string // Если пусто — все источники.
}

// Subscription возвращается при подписке; позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published   uint64
	Consumed    uint64
	Dropped     uint64 // Опубликовано, но ни один подписчик не подошёл.
	Subscribers int
}

// EventBus определяет абстракцию шины событий.
type EventBus interface {
	Publish(ev *Envelope) error
	Subscribe(f Filter, h Handler) Subscription
	Metrics() Stats
}

//================ Synchronous in-process implementation =================//

// Bus доставляет события синхронно, в потоке вызывающего, в порядке подписки.
// Обработчик получает событие только после того, как Publish вызван, поэтому
// издатель сам решает, в какой момент (например, после всего пакета записей) уведомлять.
// Bus не потокобезопасен для Publish/Subscribe: владелец один. Счётчики атомарные,
// чтобы Metrics можно было читать из горутины экспортёра.
type Bus struct {
	subscribers []subscriber
	nextID      int

	published  atomic.Uint64
	consumed   atomic.Uint64
	dropped    atomic.Uint64
	subscribed atomic.Int64
}

type subscriber struct {
	id      int
	filter  Filter
	handler Handler
}

// New создаёт синхронную шину.
func New() *Bus {
	return &Bus{}
}

// Publish рассылает событие всем подходящим подписчикам.
func (b *Bus) Publish(ev *Envelope) error {
	if ev == nil {
		return nil
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b.published.Add(1)

	// Копия списка: обработчик может отписаться или подписать кого-то во время рассылки.
	subs := make([]subscriber, len(b.subscribers))
	copy(subs, b.subscribers)

	delivered := false
	for _, sub := range subs {
		if !b.active(sub.id) || !matchFilter(ev, sub.filter) {
			continue
		}
		sub.handler(ev)
		b.consumed.Add(1)
		delivered = true
	}
	if !delivered {
		b.dropped.Add(1)
	}
	return nil
}

// Subscribe регистрирует обработчик. Порядок доставки совпадает с порядком подписки.
func (b *Bus) Subscribe(f Filter, h Handler) Subscription {
	id := b.nextID
	b.nextID++
	b.subscribers = append(b.subscribers, subscriber{id: id, filter: f, handler: h})
	b.subscribed.Add(1)
	return &busSub{bus: b, id: id}
}

// Metrics возвращает снимок счётчиков.
func (b *Bus) Metrics() Stats {
	return Stats{
		Published:   b.published.Load(),
		Consumed:    b.consumed.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: int(b.subscribed.Load()),
	}
}

func (b *Bus) active(id int) bool {
	for _, s := range b.subscribers {
		if s.id == id {
			return true
		}
	}
	return false
}

func (b *Bus) remove(id int) {
	for i, s := range b.subscribers {
		if s.id == id {
			// Новый срез, чтобы не портить копию, по которой сейчас идёт рассылка.
			next := make([]subscriber, 0, len(b.subscribers)-1)
			next = append(next, b.subscribers[:i]...)
			next = append(next, b.subscribers[i+1:]...)
			b.subscribers = next
			b.subscribed.Add(-1)
			return
		}
	}
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		if len(arr) == 0 {
			return true
		}
		for _, v := range arr {
			if v == val {
				return true
			}
		}
		return false
	}
	return match(ev.EventType, f.Types) && match(ev.Source, f.Sources)
}

type busSub struct {
	bus  *Bus
	id   int
	done bool
}

func (s *busSub) Unsubscribe() {
	if s.done {
		return
	}
	s.done = true
	s.bus.remove(s.id)
}
