package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the live progress view.
type KeyMap struct {
	Stop key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Stop: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "stop the run"),
		),
	}
}
