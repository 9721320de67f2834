package tui

// Message types for the TUI

// dispatchMsg carries a closure onto the Update goroutine
type dispatchMsg struct {
	fn func()
}

// bridgeClosedMsg signals the bridge will deliver nothing more
type bridgeClosedMsg struct{}
