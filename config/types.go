package config

// Pauses switches individual modules off. A paused module rejects every
// mutating call with ErrModulePaused; queries keep working.
type Pauses struct {
	Bank      bool `toml:"Bank"`
	Tranche   bool `toml:"Tranche"`
	Lending   bool `toml:"Lending"`
	Waterfall bool `toml:"Waterfall"`
	Market    bool `toml:"Market"`
}

// Storage selects the key/value backend.
type Storage struct {
	// Backend is one of "memory", "leveldb" or "bolt".
	Backend string `toml:"Backend"`
	// Path is the leveldb directory or bolt file.
	Path string `toml:"Path"`
}
