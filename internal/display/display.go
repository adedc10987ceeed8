package display

import (
	"phpvm/internal/brew"
)

// State is the complete presentation state. It is replaced wholesale on
// every publish; renderers never receive partial updates.
type State struct {
	Busy     bool
	Target   string
	Active   brew.Installation
	Versions []string
}

// Renderer receives every published State. Render must be idempotent:
// rendering the same State twice yields the same surface.
type Renderer interface {
	Render(state State)
}

// Preferences is the read-only preference query surface for renderers.
type Preferences interface {
	DynamicStatusEnabled() bool
}

// StaticPreferences answers preference queries from fixed values.
type StaticPreferences struct {
	DynamicStatus bool
}

// DynamicStatusEnabled implements Preferences.
func (p StaticPreferences) DynamicStatusEnabled() bool {
	return p.DynamicStatus
}
