package devices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kilianp07/energyiot/core/action"
	"github.com/kilianp07/energyiot/core/model"
)

// KasaConfig configures a TP-Link Kasa cloud gateway.
type KasaConfig struct {
	Group   string `json:"group"`
	AppType string `json:"app_type"`
}

// Kasa switches plugs through the Kasa cloud passthrough method.
type Kasa struct {
	group   string
	appType string
	client  *http.Client
}

// NewKasa returns a Kasa gateway. Empty settings default to the "Kasa" group
// and the Android app type.
func NewKasa(cfg KasaConfig, client *http.Client) *Kasa {
	if cfg.Group == "" {
		cfg.Group = "Kasa"
	}
	if cfg.AppType == "" {
		cfg.AppType = "Kasa_Android"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Kasa{group: cfg.Group, appType: cfg.AppType, client: client}
}

func (k *Kasa) Group() string { return k.group }

type kasaRelayState struct {
	State int `json:"state"`
}

type kasaSystem struct {
	SetRelayState kasaRelayState `json:"set_relay_state"`
}

type kasaRequestData struct {
	System kasaSystem `json:"system"`
}

type kasaPassthroughParams struct {
	DeviceID    string          `json:"deviceId"`
	RequestData kasaRequestData `json:"requestData"`
}

type kasaRequest struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

type kasaResponse struct {
	ErrorCode int             `json:"error_code"`
	Msg       string          `json:"msg"`
	Result    json.RawMessage `json:"result"`
}

type kasaPassthroughResult struct {
	ResponseData struct {
		System struct {
			SetRelayState struct {
				ErrCode int    `json:"err_code"`
				ErrMsg  string `json:"err_msg"`
			} `json:"set_relay_state"`
		} `json:"system"`
	} `json:"responseData"`
}

// SetRelayState posts a passthrough set_relay_state request for deviceID.
func (k *Kasa) SetRelayState(ctx context.Context, group model.ActionGroup, deviceID string, state int) action.Result {
	endpoint := group.DeviceURL + "?token=" + url.QueryEscape(group.Token)
	req := kasaRequest{
		Method: "passthrough",
		Params: kasaPassthroughParams{
			DeviceID:    deviceID,
			RequestData: kasaRequestData{System: kasaSystem{SetRelayState: kasaRelayState{State: state}}},
		},
	}
	status, body, err := doJSON(ctx, k.client, http.MethodPost, endpoint, "", req)
	if err != nil {
		return action.Result{StatusCode: status, Err: err}
	}
	res := action.Result{StatusCode: status}
	if !statusOK(status) {
		return res
	}
	var resp kasaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		res.Err = fmt.Errorf("decode kasa response: %w", err)
		return res
	}
	if resp.ErrorCode != 0 {
		res.VendorCode = resp.ErrorCode
		res.VendorMessage = resp.Msg
		return res
	}
	if len(resp.Result) > 0 {
		var inner kasaPassthroughResult
		if err := json.Unmarshal(resp.Result, &inner); err == nil {
			if rs := inner.ResponseData.System.SetRelayState; rs.ErrCode != 0 {
				res.VendorCode = rs.ErrCode
				res.VendorMessage = rs.ErrMsg
			}
		}
	}
	return res
}

type kasaRefreshParams struct {
	AppType      string `json:"appType"`
	TerminalUUID string `json:"terminalUUID"`
	RefreshToken string `json:"refreshToken"`
}

type kasaTokenResult struct {
	Token string `json:"token"`
}

// RefreshToken exchanges the group's refresh token for a new session token.
func (k *Kasa) RefreshToken(ctx context.Context, group model.ActionGroup) (string, error) {
	if group.AuthURL == "" {
		return "", errors.New("kasa: auth url not set")
	}
	if group.RefreshToken == "" {
		return "", errors.New("kasa: refresh token not set")
	}
	req := kasaRequest{
		Method: "refreshToken",
		Params: kasaRefreshParams{AppType: k.appType, TerminalUUID: group.TerminalUUID, RefreshToken: group.RefreshToken},
	}
	status, body, err := doJSON(ctx, k.client, http.MethodPost, group.AuthURL, "", req)
	if err != nil {
		return "", fmt.Errorf("kasa refresh: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("kasa refresh: status code not ok: %d", status)
	}
	var resp kasaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("kasa refresh: decode: %w", err)
	}
	if resp.ErrorCode != 0 {
		return "", fmt.Errorf("kasa refresh: error code %d msg: %s", resp.ErrorCode, resp.Msg)
	}
	var tok kasaTokenResult
	if err := json.Unmarshal(resp.Result, &tok); err != nil || tok.Token == "" {
		return "", errors.New("kasa refresh: token missing from response")
	}
	return tok.Token, nil
}
