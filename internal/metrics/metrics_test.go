package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := New("test")

	r.TilesWritten(3)
	r.TilesWritten(0)
	r.SnapshotCommitted()
	r.SnapshotBytes(256)
	r.SnapshotBytes(128)
	r.Restored(RestoreUndo)
	r.Restored(RestoreUndo)
	r.Restored(RestoreRedo)
	r.StoreSize(2, 5)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.tilesWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.snapshotsCommitted))
	assert.Equal(t, 128.0, testutil.ToFloat64(r.snapshotBytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.restores.WithLabelValues(RestoreUndo)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.restores.WithLabelValues(RestoreRedo)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.chunks))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.tiles))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.TilesWritten(1)
		r.TilemapCleared()
		r.StoreSize(1, 1)
		r.SnapshotCommitted()
		r.SnapshotBytes(1)
		r.HistoryDepth(1)
		r.Restored(RestoreHost)
		r.DecodeFailed()
		r.ConsistencyWarning()
	})
	assert.Nil(t, r.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New("")
	r.TilemapCleared()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tileworld_tilemap_clears_total 1"))
}
