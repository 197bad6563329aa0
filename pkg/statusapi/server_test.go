package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iocafe/iocom-go/pkg/discovery"
	"github.com/iocafe/iocom-go/pkg/mblk"
	"github.com/iocafe/iocom-go/pkg/registry"
)

func newTestRouter(t *testing.T) (http.Handler, *registry.Registry) {
	t.Helper()
	reg := registry.New("ctrl", "factory", 9, nil)
	disc := discovery.NewManager(reg)
	return NewRouter(reg, disc), reg
}

func TestLiveness(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestReadiness(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessWithoutRegistry(t *testing.T) {
	router := NewRouter(nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusDumpsRegistry(t *testing.T) {
	router, reg := newTestRouter(t)

	_, err := reg.CreateBlock("exp", "iob", 2, "factory", 64, mblk.Up, 0)
	require.NoError(t, err)
	_, err = reg.CreateBlock("imp", "iob", 2, "factory", 32, mblk.Down, 0)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string         `json:"status"`
		Data   StatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ctrl", resp.Data.DeviceName)
	assert.Equal(t, uint32(9), resp.Data.DeviceNr)
	assert.Len(t, resp.Data.MemoryBlocks, 2)

	names := map[string]string{}
	for _, b := range resp.Data.MemoryBlocks {
		names[b.MblkName] = b.Direction
	}
	assert.Equal(t, "up", names["exp"])
	assert.Equal(t, "down", names["imp"])

	// The blocks' network shows up through the discovery manager too.
	require.NotEmpty(t, resp.Data.Networks)
	assert.Equal(t, "factory", resp.Data.Networks[0].Name)
}
