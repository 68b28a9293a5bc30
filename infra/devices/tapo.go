package devices

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/kilianp07/energyiot/core/action"
	"github.com/kilianp07/energyiot/core/model"
)

// TapoConfig configures a Tapo gateway.
type TapoConfig struct {
	Group string `json:"group"`
}

// Tapo updates the desired state of a plug through the device shadow API.
type Tapo struct {
	group  string
	client *http.Client
}

// NewTapo returns a Tapo gateway serving the "Tapo" group unless configured.
func NewTapo(cfg TapoConfig, client *http.Client) *Tapo {
	if cfg.Group == "" {
		cfg.Group = "Tapo"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Tapo{group: cfg.Group, client: client}
}

func (t *Tapo) Group() string { return t.group }

type tapoDesired struct {
	On bool `json:"on"`
}

type tapoState struct {
	Desired tapoDesired `json:"desired"`
}

type tapoRequest struct {
	State tapoState `json:"state"`
}

type tapoError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SetRelayState patches the shadow of deviceID. Any state other than zero
// switches the plug on.
func (t *Tapo) SetRelayState(ctx context.Context, group model.ActionGroup, deviceID string, state int) action.Result {
	endpoint := strings.TrimSuffix(group.DeviceURL, "/") + "/" + url.PathEscape(deviceID)
	req := tapoRequest{State: tapoState{Desired: tapoDesired{On: state != 0}}}
	status, body, err := doJSON(ctx, t.client, http.MethodPatch, endpoint, group.Token, req)
	if err != nil {
		return action.Result{StatusCode: status, Err: err}
	}
	res := action.Result{StatusCode: status}
	var e tapoError
	if len(body) > 0 && json.Unmarshal(body, &e) == nil && e.Code != 0 {
		res.VendorCode = e.Code
		res.VendorMessage = e.Message
	}
	return res
}
