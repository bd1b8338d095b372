package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// Module names recognised by the pause guard.
const (
	ModuleBank      = "bank"
	ModuleTranche   = "tranche"
	ModuleLending   = "lending"
	ModuleWaterfall = "waterfall"
	ModuleMarket    = "market"
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Pauses is a static PauseView keyed by module name.
type Pauses map[string]bool

func (p Pauses) IsPaused(module string) bool {
	return p[module]
}
