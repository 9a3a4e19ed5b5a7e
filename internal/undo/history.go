package undo

import (
	"time"

	"github.com/google/uuid"
)

// GroupID — непрозрачный идентификатор группы изменений.
type GroupID string

func newGroupID() GroupID {
	return GroupID(uuid.NewString())
}

// Snapshot — неизменяемый снимок карты на границе группы.
// Data — сохраняемый буфер (после сериализации и сжатия), Hash — xxhash
// несжатого буфера.
type Snapshot struct {
	GroupID GroupID
	Name    string
	Data    []byte
	RawSize int
	Hash    uint64
	Created time.Time
}

// SnapshotInfo — описание снимка для History без самих данных.
type SnapshotInfo struct {
	GroupID GroupID
	Name    string
	Bytes   int
	RawSize int
	Hash    uint64
	Created time.Time
	Current bool
}

// history — линейный стек снимков с курсором на текущем.
// Снимки левее курсора доступны для Undo, правее для Redo.
type history struct {
	entries []*Snapshot
	cursor  int
	max     int
}

func newHistory(max int, base *Snapshot) *history {
	if max < 1 {
		max = 1
	}
	return &history{entries: []*Snapshot{base}, max: max}
}

func (h *history) current() *Snapshot {
	return h.entries[h.cursor]
}

func (h *history) canUndo() bool { return h.cursor > 0 }
func (h *history) canRedo() bool { return h.cursor < len(h.entries)-1 }

// push отбрасывает хвост Redo, добавляет снимок и обрезает самые старые
// записи до max. Текущий снимок никогда не удаляется.
func (h *history) push(s *Snapshot) {
	h.entries = append(h.entries[:h.cursor+1], s)
	h.cursor = len(h.entries) - 1
	if over := len(h.entries) - h.max; over > 0 {
		for i := 0; i < over; i++ {
			h.entries[i] = nil
		}
		h.entries = h.entries[over:]
		h.cursor -= over
	}
}

// replaceCurrent подменяет текущий снимок, не трогая остальные.
func (h *history) replaceCurrent(s *Snapshot) {
	h.entries[h.cursor] = s
}

func (h *history) find(id GroupID) (int, bool) {
	for i, s := range h.entries {
		if s.GroupID == id {
			return i, true
		}
	}
	return 0, false
}

func (h *history) infos() []SnapshotInfo {
	out := make([]SnapshotInfo, len(h.entries))
	for i, s := range h.entries {
		out[i] = SnapshotInfo{
			GroupID: s.GroupID,
			Name:    s.Name,
			Bytes:   len(s.Data),
			RawSize: s.RawSize,
			Hash:    s.Hash,
			Created: s.Created,
			Current: i == h.cursor,
		}
	}
	return out
}
