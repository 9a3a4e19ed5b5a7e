package undo

// Host — внешняя система отмены (редактор, сцена), которой координатор
// сообщает о границах групп изменений.
type Host interface {
	// BeginGroup открывает новую группу на стороне хоста.
	BeginGroup(name string)
	// GroupCommitted сообщает, что группа закрыта и под id лежит снимок.
	GroupCommitted(id GroupID, name string)
}

// NopHost ничего не делает.
type NopHost struct{}

func (NopHost) BeginGroup(string)              {}
func (NopHost) GroupCommitted(GroupID, string) {}

// Виды вызовов, которые запоминает RecordingHost.
const (
	CallBeginGroup     = "begin_group"
	CallGroupCommitted = "group_committed"
)

// HostCall — один вызов хоста.
type HostCall struct {
	Kind string
	Name string
	ID   GroupID
}

// RecordingHost запоминает вызовы по порядку. Используется в тестах и в tilectl.
type RecordingHost struct {
	Calls []HostCall
}

func (h *RecordingHost) BeginGroup(name string) {
	h.Calls = append(h.Calls, HostCall{Kind: CallBeginGroup, Name: name})
}

func (h *RecordingHost) GroupCommitted(id GroupID, name string) {
	h.Calls = append(h.Calls, HostCall{Kind: CallGroupCommitted, Name: name, ID: id})
}

// Committed возвращает id закрытых групп в порядке фиксации.
func (h *RecordingHost) Committed() []GroupID {
	var ids []GroupID
	for _, c := range h.Calls {
		if c.Kind == CallGroupCommitted {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
