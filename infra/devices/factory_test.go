package devices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/energyiot/core/action"
	"github.com/kilianp07/energyiot/core/factory"
	"github.com/kilianp07/energyiot/core/model"
	inframqtt "github.com/kilianp07/energyiot/infra/mqtt"
)

func TestBuildGateways(t *testing.T) {
	cfgs := []factory.ModuleConfig{
		{Type: "kasa", Conf: map[string]any{"timeout": "3s", "breaker": map[string]any{"enabled": true}}},
		{Type: "tapo", Conf: map[string]any{"group": "Tapo"}},
		{Type: "mqtt", Conf: map[string]any{"group": "Relays", "ack_timeout": "2s"}},
	}
	gws, refreshers, err := Build(cfgs, Deps{MQTT: inframqtt.NewMockPublisher()})
	require.NoError(t, err)
	require.Len(t, gws, 3)
	assert.Equal(t, []string{"Kasa", "Tapo", "Relays"}, []string{gws[0].Group(), gws[1].Group(), gws[2].Group()})
	require.Len(t, refreshers, 1)
	_, ok := refreshers["Kasa"]
	assert.True(t, ok, "kasa refresh must survive the breaker wrapper")
	assert.Equal(t, []string{"kasa", "mqtt", "tapo"}, Types())
}

func TestBuildRejectsDuplicatesAndUnknown(t *testing.T) {
	_, _, err := Build([]factory.ModuleConfig{{Type: "kasa"}, {Type: "kasa"}}, Deps{})
	assert.Error(t, err)
	_, _, err = Build([]factory.ModuleConfig{{Type: "zigbee"}}, Deps{})
	assert.Error(t, err)
	_, _, err = Build([]factory.ModuleConfig{{Type: "mqtt"}}, Deps{})
	assert.Error(t, err, "mqtt gateway needs a client")
}

func TestBreakerOpensOnTransportFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := WithBreaker(NewTapo(TapoConfig{}, srv.Client()), BreakerConfig{ConsecutiveFailures: 2})
	group := model.ActionGroup{DeviceURL: srv.URL}
	for i := 0; i < 2; i++ {
		res := gw.SetRelayState(context.Background(), group, "d", 1)
		assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	}
	res := gw.SetRelayState(context.Background(), group, "d", 1)
	assert.ErrorIs(t, res.Err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	_, isRefresher := gw.(action.Refresher)
	assert.False(t, isRefresher)
}

func TestBreakerIgnoresVendorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error_code":-20571,"msg":"offline"}`))
	}))
	defer srv.Close()

	gw := WithBreaker(NewKasa(KasaConfig{}, srv.Client()), BreakerConfig{ConsecutiveFailures: 1})
	for i := 0; i < 3; i++ {
		res := gw.SetRelayState(context.Background(), model.ActionGroup{DeviceURL: srv.URL}, "d", 1)
		assert.Equal(t, -20571, res.VendorCode)
	}
}
