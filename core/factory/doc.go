// Package factory provides a small generic registry used to instantiate modules
// from configuration. Device gateways and metrics sinks are both declared as
// a type string plus a map of raw settings; factories decode the settings into
// typed structs and return the concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[action.Gateway]()
//	reg.Register("kasa", func(conf map[string]any) (action.Gateway, error) {
//	    var c kasa.Config
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return kasa.New(c), nil
//	})
//	gw, err := reg.Create(factory.ModuleConfig{Type: "kasa", Conf: map[string]any{"group": "Kasa"}})
package factory
