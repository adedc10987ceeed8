package display

import (
	"sync"
)

// Publisher is the single path through which presentation state changes.
// Publishes are serialized: renderers observe states in publication order
// and never interleaved. All methods are safe on a nil receiver.
type Publisher struct {
	mu        sync.Mutex
	renderers []Renderer
	last      State
	hasLast   bool
}

// NewPublisher creates a publisher broadcasting to the given renderers.
func NewPublisher(renderers ...Renderer) *Publisher {
	filtered := make([]Renderer, 0, len(renderers))
	for _, renderer := range renderers {
		if renderer == nil {
			continue
		}
		filtered = append(filtered, renderer)
	}
	return &Publisher{renderers: filtered}
}

// Publish replaces the current state and broadcasts it.
func (p *Publisher) Publish(state State) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = state
	p.hasLast = true
	for _, renderer := range p.renderers {
		renderer.Render(state)
	}
}

// Last returns the most recently published state, if any.
func (p *Publisher) Last() (State, bool) {
	if p == nil {
		return State{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.hasLast
}
