// Package config loads run settings for dvm from TOML.
//
//	[vm]
//	max_call_depth = 1024
//	heap_capacity = 1000
//	max_object_size = 16777216
//	max_ticks = 0
//	verbose = false
//
//	[log]
//	verbosity = 0
//	path = ""
//	locale = ""
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ezrec/dvm/translate"
	"github.com/ezrec/dvm/vm"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var f = translate.From

var (
	ErrUnknownKey = errors.New(f("unknown configuration key"))
	ErrNegative   = errors.New(f("configuration value is negative"))
)

// VM limits applied to every run.
type VM struct {
	MaxCallDepth  int    `toml:"max_call_depth"`
	HeapCapacity  int    `toml:"heap_capacity"` // Zero is unlimited.
	MaxObjectSize uint64 `toml:"max_object_size"`
	MaxTicks      int    `toml:"max_ticks"` // Zero is unlimited.
	Verbose       bool   `toml:"verbose"`
}

// Log destination and message locale.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`   // Empty logs to stderr.
	Locale    string `toml:"locale"` // Empty keeps the host locale.
}

// Config is the full set of run settings.
type Config struct {
	VM  VM  `toml:"vm"`
	Log Log `toml:"log"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		VM: VM{
			MaxCallDepth:  vm.MAX_CALL_DEPTH,
			HeapCapacity:  vm.HEAP_CAPACITY,
			MaxObjectSize: vm.MAX_OBJECT_SIZE,
		},
	}
}

// Parse decodes TOML settings over the defaults.
func Parse(data []byte) (cfg *Config, err error) {
	c := Default()

	md, err := toml.Decode(string(data), c)
	if err != nil {
		return
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for n, key := range undecoded {
			keys[n] = key.String()
		}
		err = fmt.Errorf("%w: %v", ErrUnknownKey, strings.Join(keys, ", "))
		return
	}

	err = c.validate()
	if err != nil {
		return
	}

	cfg = c
	return
}

// Load reads settings from a TOML file.
func Load(path string) (cfg *Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	cfg, err = Parse(data)
	if err != nil {
		err = fmt.Errorf("%v: %w", path, err)
	}

	return
}

func (cfg *Config) validate() error {
	for name, value := range map[string]int{
		"vm.max_call_depth": cfg.VM.MaxCallDepth,
		"vm.heap_capacity":  cfg.VM.HeapCapacity,
		"vm.max_ticks":      cfg.VM.MaxTicks,
	} {
		if value < 0 {
			return fmt.Errorf("%w: %v = %v", ErrNegative, name, value)
		}
	}

	return nil
}

// Apply configures logging and the message locale.
func (cfg *Config) Apply() {
	var path *string
	if cfg.Log.Path != "" {
		path = &cfg.Log.Path
	}
	commonlog.Configure(cfg.Log.Verbosity, path)

	if cfg.Log.Locale != "" {
		translate.SetLocales(cfg.Log.Locale)
	}
}

// Options returns the VM options for these settings.
func (cfg *Config) Options() []vm.Option {
	return []vm.Option{
		vm.WithMaxCallDepth(cfg.VM.MaxCallDepth),
		vm.WithHeapCapacity(cfg.VM.HeapCapacity),
		vm.WithMaxObjectSize(cfg.VM.MaxObjectSize),
		vm.WithVerbose(cfg.VM.Verbose),
	}
}
