package devices

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/energyiot/core/model"
)

func TestKasaSetRelayState(t *testing.T) {
	var gotToken string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotToken = r.URL.Query().Get("token")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte(`{"error_code":0,"result":{"responseData":{"system":{"set_relay_state":{"err_code":0}}}}}`))
	}))
	defer srv.Close()

	k := NewKasa(KasaConfig{}, srv.Client())
	group := model.ActionGroup{ID: "Kasa", Token: "tok+1", DeviceURL: srv.URL}
	res := k.SetRelayState(context.Background(), group, "dev-1", 1)

	require.True(t, res.OK(), res.String())
	assert.Equal(t, "Kasa", k.Group())
	assert.Equal(t, "tok+1", gotToken)
	assert.Equal(t, "passthrough", gotBody["method"])
	params := gotBody["params"].(map[string]any)
	assert.Equal(t, "dev-1", params["deviceId"])
	state := params["requestData"].(map[string]any)["system"].(map[string]any)["set_relay_state"].(map[string]any)["state"]
	assert.Equal(t, float64(1), state)
}

func TestKasaVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error_code":-20571,"msg":"Device is offline"}`))
	}))
	defer srv.Close()

	res := NewKasa(KasaConfig{}, srv.Client()).SetRelayState(context.Background(), model.ActionGroup{DeviceURL: srv.URL}, "d", 0)
	assert.True(t, res.TransportOK())
	assert.Equal(t, -20571, res.VendorCode)
	assert.Equal(t, "Device is offline", res.VendorMessage)
}

func TestKasaRelayErrCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error_code":0,"result":{"responseData":{"system":{"set_relay_state":{"err_code":-1,"err_msg":"module not support"}}}}}`))
	}))
	defer srv.Close()

	res := NewKasa(KasaConfig{}, srv.Client()).SetRelayState(context.Background(), model.ActionGroup{DeviceURL: srv.URL}, "d", 1)
	assert.False(t, res.OK())
	assert.Equal(t, -1, res.VendorCode)
}

func TestKasaNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res := NewKasa(KasaConfig{}, srv.Client()).SetRelayState(context.Background(), model.ActionGroup{DeviceURL: srv.URL}, "d", 1)
	assert.False(t, res.TransportOK())
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.NoError(t, res.Err)
}

func TestKasaTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := NewKasa(KasaConfig{}, nil).SetRelayState(context.Background(), model.ActionGroup{DeviceURL: url}, "d", 1)
	assert.Error(t, res.Err)
}

func TestKasaRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params map[string]string `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "refreshToken", req.Method)
		assert.Equal(t, "Kasa_Android", req.Params["appType"])
		assert.Equal(t, "term-1", req.Params["terminalUUID"])
		assert.Equal(t, "refresh-1", req.Params["refreshToken"])
		_, _ = w.Write([]byte(`{"error_code":0,"result":{"token":"new-token"}}`))
	}))
	defer srv.Close()

	k := NewKasa(KasaConfig{}, srv.Client())
	tok, err := k.RefreshToken(context.Background(), model.ActionGroup{ID: "Kasa", AuthURL: srv.URL, TerminalUUID: "term-1", RefreshToken: "refresh-1"})
	require.NoError(t, err)
	assert.Equal(t, "new-token", tok)
}

func TestKasaRefreshTokenErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error_code":-20651,"msg":"Token expired"}`))
	}))
	defer srv.Close()
	k := NewKasa(KasaConfig{}, srv.Client())

	_, err := k.RefreshToken(context.Background(), model.ActionGroup{AuthURL: srv.URL, RefreshToken: "r"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Token expired")

	_, err = k.RefreshToken(context.Background(), model.ActionGroup{AuthURL: srv.URL})
	assert.Error(t, err)
	_, err = k.RefreshToken(context.Background(), model.ActionGroup{RefreshToken: "r"})
	assert.Error(t, err)
}
