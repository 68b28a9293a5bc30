package devices

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/energyiot/core/action"
	"github.com/kilianp07/energyiot/core/factory"
	coremqtt "github.com/kilianp07/energyiot/core/mqtt"
)

// Deps carries the shared transports gateways are built with.
type Deps struct {
	HTTP *http.Client
	MQTT coremqtt.Client
}

// Builder creates a gateway once the shared transports are known.
type Builder func(Deps) (action.Gateway, error)

// baseConfig holds the settings every gateway module accepts.
type baseConfig struct {
	Timeout time.Duration `json:"timeout"`
	Breaker BreakerConfig `json:"breaker"`
}

var registry = factory.NewRegistry[Builder]()

// Register adds a gateway factory identified by name.
func Register(name string, f factory.Factory[Builder]) error {
	return registry.Register(name, f)
}

// Types lists the registered gateway types.
func Types() []string { return registry.Types() }

func init() {
	_ = Register("kasa", func(conf map[string]any) (Builder, error) {
		var c KasaConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return func(d Deps) (action.Gateway, error) { return NewKasa(c, d.HTTP), nil }, nil
	})
	_ = Register("tapo", func(conf map[string]any) (Builder, error) {
		var c TapoConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return func(d Deps) (action.Gateway, error) { return NewTapo(c, d.HTTP), nil }, nil
	})
	_ = Register("mqtt", func(conf map[string]any) (Builder, error) {
		var c MQTTConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return func(d Deps) (action.Gateway, error) { return NewMQTTRelay(c, d.MQTT) }, nil
	})
}

// Build instantiates every configured gateway. Each group id may be served
// by one gateway only. The refreshers map holds the gateways implementing
// action.Refresher keyed by group.
func Build(cfgs []factory.ModuleConfig, deps Deps) ([]action.Gateway, map[string]action.Refresher, error) {
	gateways := make([]action.Gateway, 0, len(cfgs))
	refreshers := make(map[string]action.Refresher)
	seen := make(map[string]bool)
	for i, mc := range cfgs {
		var base baseConfig
		if err := factory.Decode(mc.Conf, &base); err != nil {
			return nil, nil, fmt.Errorf("device %d: %w", i, err)
		}
		d := deps
		if d.HTTP == nil {
			d.HTTP = &http.Client{Timeout: factory.DurationOr(base.Timeout, 10*time.Second)}
		} else if base.Timeout > 0 {
			c := *d.HTTP
			c.Timeout = base.Timeout
			d.HTTP = &c
		}
		build, err := registry.Create(mc)
		if err != nil {
			return nil, nil, fmt.Errorf("device %d: %w", i, err)
		}
		gw, err := build(d)
		if err != nil {
			return nil, nil, fmt.Errorf("device %d (%s): %w", i, mc.Type, err)
		}
		if seen[gw.Group()] {
			return nil, nil, fmt.Errorf("device %d: group %s already served", i, gw.Group())
		}
		seen[gw.Group()] = true
		if base.Breaker.Enabled {
			gw = WithBreaker(gw, base.Breaker)
		}
		gateways = append(gateways, gw)
		if r, ok := gw.(action.Refresher); ok {
			refreshers[gw.Group()] = r
		}
	}
	return gateways, refreshers, nil
}
