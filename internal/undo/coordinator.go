// Package undo держит живую карту тайлов согласованной с линейной историей
// изменений: каждая группа изменений фиксируется неизменяемым снимком, а Undo,
// Redo и перезагрузка целиком заменяют карту декодированным снимком.
package undo

import (
	"errors"
	"fmt"
	"time"

	"github.com/annel0/tileworld/internal/compression"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/metrics"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/world"
)

// DefaultMaxHistory — глубина истории по умолчанию, включая текущий снимок.
const DefaultMaxHistory = 100

var (
	// ErrNilStore — координатор создан без карты.
	ErrNilStore = errors.New("undo: nil tilemap")
	// ErrEditInProgress — операция недоступна, пока открыта группа изменений.
	ErrEditInProgress = errors.New("undo: edit in progress")
	// ErrNoEditInProgress — CommitEdit без BeginEdit.
	ErrNoEditInProgress = errors.New("undo: no edit in progress")
)

// State — состояние протокола фиксации.
type State int

const (
	Idle State = iota
	EditInProgress
	AwaitingGroupCommit
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case EditInProgress:
		return "EditInProgress"
	case AwaitingGroupCommit:
		return "AwaitingGroupCommit"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option настраивает Coordinator.
type Option func(*Coordinator)

// WithSerializer задаёт формат снимков (по умолчанию binary).
func WithSerializer(s *protocol.Serializer) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.serializer = s
		}
	}
}

// WithTransformer задаёт сжатие снимков (по умолчанию без сжатия).
func WithTransformer(t compression.Transformer) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.transformer = t
		}
	}
}

// WithMaxHistory ограничивает число хранимых снимков; меньше 1 читается как 1.
func WithMaxHistory(n int) Option {
	return func(c *Coordinator) { c.maxHistory = n }
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Coordinator) { c.metrics = r }
}

// WithHost подключает внешнюю систему отмены.
func WithHost(h Host) Option {
	return func(c *Coordinator) {
		if h != nil {
			c.host = h
		}
	}
}

// Coordinator связывает живую карту с историей снимков.
//
// Не потокобезопасен: все вызовы делает один владелец, как и у world.Tilemap.
type Coordinator struct {
	store       *world.Tilemap
	serializer  *protocol.Serializer
	transformer compression.Transformer
	host        Host
	logger      *logging.Logger
	metrics     *metrics.Recorder
	maxHistory  int

	hist     *history
	buffer   []byte
	state    State
	editName string

	onReplace []func(*world.Tilemap)
}

// NewCoordinator создаёт координатор и сразу снимает начальное состояние карты,
// чтобы первую фиксацию можно было отменить.
func NewCoordinator(store *world.Tilemap, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	c := &Coordinator{
		store:       store,
		serializer:  protocol.NewSerializer(protocol.FormatBinary),
		transformer: compression.NewPassthrough(),
		host:        NopHost{},
		maxHistory:  DefaultMaxHistory,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.GetUndoLogger()
	}

	base, err := c.capture(newGroupID(), "initial")
	if err != nil {
		return nil, fmt.Errorf("начальный снимок: %w", err)
	}
	c.hist = newHistory(c.maxHistory, base)
	c.buffer = base.Data
	c.metrics.HistoryDepth(len(c.hist.entries))
	c.metrics.SnapshotBytes(len(base.Data))
	c.logger.Info("Координатор undo запущен: формат %s, сжатие %s, история %d",
		c.serializer.Format(), c.transformer.Name(), c.hist.max)
	return c, nil
}

// Store возвращает текущую живую карту. После Undo/Redo/перезагрузки это новый объект.
func (c *Coordinator) Store() *world.Tilemap {
	return c.store
}

// State возвращает состояние протокола фиксации.
func (c *Coordinator) State() State {
	return c.state
}

// Buffer возвращает копию сохранённого буфера.
func (c *Coordinator) Buffer() []byte {
	return append([]byte(nil), c.buffer...)
}

func (c *Coordinator) CanUndo() bool { return c.hist.canUndo() }
func (c *Coordinator) CanRedo() bool { return c.hist.canRedo() }

// History описывает снимки от самого старого к самому новому.
func (c *Coordinator) History() []SnapshotInfo {
	return c.hist.infos()
}

// Fingerprint — xxhash несжатого буфера текущего снимка.
func (c *Coordinator) Fingerprint() uint64 {
	return c.hist.current().Hash
}

// OnReplace регистрирует обработчик, который получает новую карту после полной замены.
func (c *Coordinator) OnReplace(fn func(*world.Tilemap)) {
	c.onReplace = append(c.onReplace, fn)
}

// BeginEdit открывает группу изменений.
func (c *Coordinator) BeginEdit(name string) error {
	if c.state != Idle {
		return ErrEditInProgress
	}
	c.state = EditInProgress
	c.editName = name
	c.host.BeginGroup(name)
	c.logger.Debug("Открыта группа %q", name)
	return nil
}

// CommitEdit фиксирует группу: сериализует карту, кладёт буфер в сохраняемое
// поле и новый снимок в историю, отбрасывая хвост Redo. При ошибке кодирования
// буфер и история остаются как были, а группа остаётся открытой.
func (c *Coordinator) CommitEdit() (GroupID, error) {
	if c.state != EditInProgress {
		return "", ErrNoEditInProgress
	}
	c.state = AwaitingGroupCommit

	id := newGroupID()
	snap, err := c.capture(id, c.editName)
	if err != nil {
		c.state = EditInProgress
		return "", fmt.Errorf("фиксация группы %q: %w", c.editName, err)
	}

	c.hist.push(snap)
	c.buffer = snap.Data
	name := c.editName
	c.editName = ""
	c.state = Idle

	c.metrics.SnapshotCommitted()
	c.metrics.SnapshotBytes(len(snap.Data))
	c.metrics.HistoryDepth(len(c.hist.entries))
	c.logger.Debug("Группа %q зафиксирована как %s (%d байт)", name, id, len(snap.Data))

	c.host.GroupCommitted(id, name)
	c.host.BeginGroup("")
	return id, nil
}

// Undo восстанавливает предыдущий снимок. false — отменять нечего.
func (c *Coordinator) Undo() (bool, error) {
	if c.state != Idle {
		return false, ErrEditInProgress
	}
	if !c.hist.canUndo() {
		return false, nil
	}
	if err := c.restore(c.hist.entries[c.hist.cursor-1], metrics.RestoreUndo); err != nil {
		return false, err
	}
	c.hist.cursor--
	return true, nil
}

// Redo повторяет отменённый снимок. false — повторять нечего.
func (c *Coordinator) Redo() (bool, error) {
	if c.state != Idle {
		return false, ErrEditInProgress
	}
	if !c.hist.canRedo() {
		return false, nil
	}
	if err := c.restore(c.hist.entries[c.hist.cursor+1], metrics.RestoreRedo); err != nil {
		return false, err
	}
	c.hist.cursor++
	return true, nil
}

// UndoRedoPerformed вызывается хостом после его собственного undo/redo.
// Неизвестная группа (чужая или уже вытесненная из истории) игнорируется.
func (c *Coordinator) UndoRedoPerformed(id GroupID) (bool, error) {
	idx, ok := c.hist.find(id)
	if !ok {
		c.logger.Trace("Группа %s не принадлежит карте, пропуск", id)
		return false, nil
	}
	if err := c.restore(c.hist.entries[idx], metrics.RestoreHost); err != nil {
		return false, err
	}
	c.hist.cursor = idx
	c.state = Idle
	c.editName = ""
	return true, nil
}

// BeforeReload пересохраняет буфер перед перезагрузкой хоста.
func (c *Coordinator) BeforeReload() error {
	return c.resave("before_reload")
}

// SceneSaving пересохраняет буфер перед сохранением сцены.
func (c *Coordinator) SceneSaving() error {
	return c.resave("scene_saving")
}

// AfterReload восстанавливает карту из сохранённого буфера после перезагрузки.
func (c *Coordinator) AfterReload() error {
	return c.restoreBuffer(metrics.RestoreReload)
}

// SceneOpened восстанавливает карту из сохранённого буфера при открытии сцены.
func (c *Coordinator) SceneOpened() error {
	return c.restoreBuffer(metrics.RestoreSceneOpen)
}

// LoadBuffer принимает внешний сохранённый буфер как новую базу истории
// и заменяет им живую карту. История до этого отбрасывается.
func (c *Coordinator) LoadBuffer(buf []byte) error {
	if c.state != Idle {
		return ErrEditInProgress
	}
	data := append([]byte(nil), buf...)
	raw, err := c.transformer.Decompress(data)
	if err != nil {
		c.metrics.DecodeFailed()
		return fmt.Errorf("загрузка буфера: %w", err)
	}
	snap := &Snapshot{
		GroupID: newGroupID(),
		Name:    "loaded",
		Data:    data,
		RawSize: len(raw),
		Hash:    c.transformer.Hash(raw),
		Created: time.Now().UTC(),
	}
	if err := c.replaceFrom(raw, metrics.RestoreLoadBuffer); err != nil {
		return fmt.Errorf("загрузка буфера: %w", err)
	}
	c.hist = newHistory(c.maxHistory, snap)
	c.buffer = data
	c.metrics.SnapshotBytes(len(data))
	c.metrics.HistoryDepth(1)
	return nil
}

// resave сериализует карту без новой группы. Если длина свежего буфера
// отличается от сохранённого, это предупреждение о рассинхронизации; свежий
// буфер всё равно побеждает.
func (c *Coordinator) resave(hook string) error {
	head := c.hist.current()
	snap, err := c.capture(head.GroupID, head.Name)
	if err != nil {
		return fmt.Errorf("%s: %w", hook, err)
	}
	if len(snap.Data) != len(c.buffer) {
		c.logger.Warn("%s: сохранённый буфер устарел (%d байт, свежий %d байт), перезаписываю",
			hook, len(c.buffer), len(snap.Data))
		c.metrics.ConsistencyWarning()
	}
	c.hist.replaceCurrent(snap)
	c.buffer = snap.Data
	c.metrics.SnapshotBytes(len(snap.Data))
	return nil
}

func (c *Coordinator) restoreBuffer(reason string) error {
	raw, err := c.transformer.Decompress(c.buffer)
	if err != nil {
		c.metrics.DecodeFailed()
		return fmt.Errorf("%s: %w", reason, err)
	}
	if err := c.replaceFrom(raw, reason); err != nil {
		return fmt.Errorf("%s: %w", reason, err)
	}
	return nil
}

// restore заменяет карту снимком и делает его буфер сохранённым.
// При ошибке живая карта и буфер не меняются.
func (c *Coordinator) restore(s *Snapshot, reason string) error {
	raw, err := c.transformer.Decompress(s.Data)
	if err != nil {
		c.metrics.DecodeFailed()
		return fmt.Errorf("%s к %s: %w", reason, s.GroupID, err)
	}
	if err := c.replaceFrom(raw, reason); err != nil {
		return fmt.Errorf("%s к %s: %w", reason, s.GroupID, err)
	}
	c.buffer = s.Data
	c.metrics.SnapshotBytes(len(s.Data))
	return nil
}

func (c *Coordinator) replaceFrom(raw []byte, reason string) error {
	next, err := c.serializer.Decode(raw,
		world.WithEventBus(c.store.Bus()),
		world.WithMetrics(c.metrics),
	)
	if err != nil {
		c.metrics.DecodeFailed()
		return err
	}
	c.store = next
	c.metrics.Restored(reason)
	c.logger.Debug("Карта заменена (%s): %d чанков, %d тайлов", reason, next.ChunkCount(), next.TileCount())

	for _, fn := range c.onReplace {
		fn(next)
	}
	next.AnnounceReplaced(reason)
	return nil
}

func (c *Coordinator) capture(id GroupID, name string) (*Snapshot, error) {
	raw, err := c.serializer.Encode(c.store)
	if err != nil {
		return nil, err
	}
	data, err := c.transformer.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("сжатие снимка (%s): %w", c.transformer.Name(), err)
	}
	return &Snapshot{
		GroupID: id,
		Name:    name,
		Data:    data,
		RawSize: len(raw),
		Hash:    c.transformer.Hash(raw),
		Created: time.Now().UTC(),
	}, nil
}
