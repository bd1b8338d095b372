package state

import (
	"fmt"

	"proplend/native/waterfall"
)

// Distributor loads the waterfall configuration and cumulative stats.
func (m *Manager) Distributor() (*waterfall.Distributor, error) {
	d := new(waterfall.Distributor)
	ok, err := m.KVGet(waterfallKey, d)
	if err != nil {
		return nil, fmt.Errorf("state: load distributor: %w", err)
	}
	if !ok {
		return waterfall.NewDistributor(), nil
	}
	return d.Clone(), nil
}

func (m *Manager) PutDistributor(d *waterfall.Distributor) error {
	if d == nil {
		return fmt.Errorf("state: nil distributor")
	}
	return m.KVPut(waterfallKey, d.Clone())
}
