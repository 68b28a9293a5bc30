// Package action applies the device actions attached to fired triggers.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/energyiot/core/model"
)

var (
	// ErrNoGateway is reported when no gateway serves an action's group.
	ErrNoGateway = errors.New("no matching device group")
	// ErrNoGroup is reported when the group session is missing from the store.
	ErrNoGroup = errors.New("action group not found")
)

// Result is the outcome of a single gateway call.
type Result struct {
	// StatusCode is the transport status, HTTP-like. Zero when the call
	// never produced a response.
	StatusCode int
	// VendorCode is the error code carried in the vendor response body.
	VendorCode    int
	VendorMessage string
	// Err is set when the call failed before a status was received.
	Err error
}

// TransportOK reports a 2xx transport status without call error.
func (r Result) TransportOK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// OK reports transport and vendor success.
func (r Result) OK() bool { return r.TransportOK() && r.VendorCode == 0 }

func (r Result) String() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("error: %v", r.Err)
	case !r.TransportOK():
		return fmt.Sprintf("status %d", r.StatusCode)
	case r.VendorCode != 0:
		return fmt.Sprintf("vendor code %d: %s", r.VendorCode, r.VendorMessage)
	}
	return "ok"
}

// Gateway switches relays for one device group.
type Gateway interface {
	// Group returns the action group id served by the gateway.
	Group() string
	SetRelayState(ctx context.Context, group model.ActionGroup, deviceID string, state int) Result
}

// Refresher is implemented by gateways whose session token expires.
type Refresher interface {
	RefreshToken(ctx context.Context, group model.ActionGroup) (string, error)
}
