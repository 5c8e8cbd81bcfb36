package xyzl

import (
	"sync"

	"github.com/pkg/errors"
)

// Inputs is the set of input subscriptions a Gate opens and closes.
type Inputs interface {
	Subscribe() error
	Unsubscribe() error
}

// A Gate subscribes to the inputs only while the output has listeners. Connect and
// Disconnect are called as listeners come and go; they are serialized so subscription
// changes never interleave.
type Gate struct {
	mu         sync.Mutex
	inputs     Inputs
	listeners  int
	subscribed bool
}

// NewGate returns a closed gate with no listeners.
func NewGate(inputs Inputs) *Gate {
	return &Gate{inputs: inputs}
}

// Connect records a new listener, subscribing to the inputs if it is the first one.
// A failed subscription is retried by the next Connect.
func (g *Gate) Connect() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners++
	if g.subscribed {
		return nil
	}
	if err := g.inputs.Subscribe(); err != nil {
		return errors.Wrap(err, "failed to subscribe to inputs")
	}
	g.subscribed = true
	return nil
}

// Disconnect records a departed listener, unsubscribing from the inputs when none remain.
func (g *Gate) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listeners == 0 {
		return errors.New("disconnect without a matching connect")
	}
	g.listeners--
	if g.listeners > 0 || !g.subscribed {
		return nil
	}
	g.subscribed = false
	if err := g.inputs.Unsubscribe(); err != nil {
		return errors.Wrap(err, "failed to unsubscribe from inputs")
	}
	return nil
}

// Allowed reports whether the inputs are subscribed, i.e. whether frames should be processed.
func (g *Gate) Allowed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subscribed
}

// Listeners returns the current number of listeners.
func (g *Gate) Listeners() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listeners
}
