package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"proplend/crypto"

	"github.com/BurntSushi/toml"
)

// Config is the ledger configuration file.
type Config struct {
	// AdminKeystorePath holds the bootstrap admin key. It is generated on
	// first load when missing.
	AdminKeystorePath string `toml:"AdminKeystorePath"`

	MinDepositUnits     uint64 `toml:"MinDepositUnits"`
	MaxLTVPercent       uint64 `toml:"MaxLTVPercent"`
	MinTermMonths       uint64 `toml:"MinTermMonths"`
	MaxTermMonths       uint64 `toml:"MaxTermMonths"`
	MinRateBps          uint64 `toml:"MinRateBps"`
	MaxRateBps          uint64 `toml:"MaxRateBps"`
	RateFloorLTV        uint64 `toml:"RateFloorLTV"`
	SeniorAnnualRateBps uint64 `toml:"SeniorAnnualRateBps"`
	PlatformMarginBps   uint64 `toml:"PlatformMarginBps"`
	TradingFeeBps       uint64 `toml:"TradingFeeBps"`
	TargetSeniorPercent uint64 `toml:"TargetSeniorPercent"`

	Pauses  Pauses  `toml:"pauses"`
	Storage Storage `toml:"storage"`
}

// Load loads the configuration from the given path, writing a default file
// and admin keystore when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyDefaults(meta)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the production economics with in-memory storage.
func Default() *Config {
	return &Config{
		MinDepositUnits:     100,
		MaxLTVPercent:       65,
		MinTermMonths:       6,
		MaxTermMonths:       12,
		MinRateBps:          1800,
		MaxRateBps:          2400,
		RateFloorLTV:        50,
		SeniorAnnualRateBps: 800,
		PlatformMarginBps:   200,
		TradingFeeBps:       30,
		TargetSeniorPercent: 80,
		Storage:             Storage{Backend: "memory"},
	}
}

// applyDefaults fills keys absent from the file. Keys present with a zero
// value are kept so Validate can reject them.
func (c *Config) applyDefaults(meta toml.MetaData) {
	def := Default()
	fill := func(key string, dst *uint64, value uint64) {
		if !meta.IsDefined(key) {
			*dst = value
		}
	}
	fill("MinDepositUnits", &c.MinDepositUnits, def.MinDepositUnits)
	fill("MaxLTVPercent", &c.MaxLTVPercent, def.MaxLTVPercent)
	fill("MinTermMonths", &c.MinTermMonths, def.MinTermMonths)
	fill("MaxTermMonths", &c.MaxTermMonths, def.MaxTermMonths)
	fill("MinRateBps", &c.MinRateBps, def.MinRateBps)
	fill("MaxRateBps", &c.MaxRateBps, def.MaxRateBps)
	fill("RateFloorLTV", &c.RateFloorLTV, def.RateFloorLTV)
	fill("SeniorAnnualRateBps", &c.SeniorAnnualRateBps, def.SeniorAnnualRateBps)
	fill("PlatformMarginBps", &c.PlatformMarginBps, def.PlatformMarginBps)
	fill("TradingFeeBps", &c.TradingFeeBps, def.TradingFeeBps)
	fill("TargetSeniorPercent", &c.TargetSeniorPercent, def.TargetSeniorPercent)
	if strings.TrimSpace(c.Storage.Backend) == "" {
		c.Storage.Backend = def.Storage.Backend
	}
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.AdminKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, KeystorePassphrase()); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.AdminKeystorePath != keystorePath {
		cfg.AdminKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, KeystorePassphrase()); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.AdminKeystorePath = keystorePath
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// KeystorePassphrase reads the admin keystore passphrase from
// PROPLEND_KEYSTORE_PASSPHRASE. An unset variable means no passphrase.
func KeystorePassphrase() string {
	return os.Getenv("PROPLEND_KEYSTORE_PASSPHRASE")
}

// AdminKey decrypts the admin keystore.
func (c *Config) AdminKey() (*crypto.PrivateKey, error) {
	return crypto.LoadFromKeystore(c.AdminKeystorePath, KeystorePassphrase())
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "admin.keystore")
}
