package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Причины полной замены хранилища из снимка.
const (
	RestoreUndo       = "undo"
	RestoreRedo       = "redo"
	RestoreHost       = "host_undo_redo"
	RestoreReload     = "reload"
	RestoreSceneOpen  = "scene_opened"
	RestoreLoadBuffer = "load_buffer"
)

// Recorder инкапсулирует Prometheus-метрики хранилища тайлов и координатора undo.
// У каждого экземпляра свой регистр, поэтому несколько Recorder в одном процессе
// (например, в тестах) не конфликтуют. Все методы безопасны для nil-получателя.
type Recorder struct {
	registry *prometheus.Registry

	tilesWritten        prometheus.Counter
	clears              prometheus.Counter
	snapshotsCommitted  prometheus.Counter
	restores            *prometheus.CounterVec
	decodeErrors        prometheus.Counter
	consistencyWarnings prometheus.Counter

	snapshotBytes prometheus.Gauge
	historyDepth  prometheus.Gauge
	chunks        prometheus.Gauge
	tiles         prometheus.Gauge
}

// New создаёт Recorder и регистрирует метрики в собственном регистре.
func New(namespace string) *Recorder {
	if namespace == "" {
		namespace = "tileworld"
	}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		tilesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tiles_written_total",
			Help:      "Число записей тайлов через SetTiles.",
		}),
		clears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tilemap_clears_total",
			Help:      "Число полных очисток карты.",
		}),
		snapshotsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_committed_total",
			Help:      "Число зафиксированных групп изменений (CommitEdit).",
		}),
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restores_total",
			Help:      "Полные замены хранилища из снимка.",
		}, []string{"reason"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Ошибки декодирования снимков.",
		}),
		consistencyWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consistency_warnings_total",
			Help:      "Сохранения, при которых свежий буфер отличался по длине от сохранённого.",
		}),
		snapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes",
			Help:      "Размер текущего сохранённого буфера в байтах.",
		}),
		historyDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_depth",
			Help:      "Количество снимков в истории undo.",
		}),
		chunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chunks",
			Help:      "Количество чанков в живом хранилище.",
		}),
		tiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tiles",
			Help:      "TileCount живого хранилища.",
		}),
	}

	r.registry.MustRegister(
		r.tilesWritten, r.clears, r.snapshotsCommitted, r.restores,
		r.decodeErrors, r.consistencyWarnings,
		r.snapshotBytes, r.historyDepth, r.chunks, r.tiles,
	)
	return r
}

// Registry возвращает регистр для дополнительных коллекторов (например, шины событий).
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler возвращает HTTP-обработчик /metrics для этого регистра.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) TilesWritten(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.tilesWritten.Add(float64(n))
}

func (r *Recorder) TilemapCleared() {
	if r == nil {
		return
	}
	r.clears.Inc()
}

// StoreSize обновляет gauges размера живого хранилища.
func (r *Recorder) StoreSize(chunks, tiles int) {
	if r == nil {
		return
	}
	r.chunks.Set(float64(chunks))
	r.tiles.Set(float64(tiles))
}

// SnapshotCommitted считает только фиксации групп (CommitEdit).
func (r *Recorder) SnapshotCommitted() {
	if r == nil {
		return
	}
	r.snapshotsCommitted.Inc()
}

// SnapshotBytes выставляет размер текущего сохранённого буфера.
func (r *Recorder) SnapshotBytes(size int) {
	if r == nil {
		return
	}
	r.snapshotBytes.Set(float64(size))
}

func (r *Recorder) HistoryDepth(n int) {
	if r == nil {
		return
	}
	r.historyDepth.Set(float64(n))
}

func (r *Recorder) Restored(reason string) {
	if r == nil {
		return
	}
	r.restores.WithLabelValues(reason).Inc()
}

func (r *Recorder) DecodeFailed() {
	if r == nil {
		return
	}
	r.decodeErrors.Inc()
}

func (r *Recorder) ConsistencyWarning() {
	if r == nil {
		return
	}
	r.consistencyWarnings.Inc()
}
