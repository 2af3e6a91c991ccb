package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"
)

// ErrInvalidConfig is returned when a cache configuration cannot be built.
var ErrInvalidConfig = errors.New("invalid cache config")

// Policy selects the replacement policy of a full set.
type Policy uint8

// Replacement policies.
const (
	// PolicyLRU evicts the line touched least recently.
	PolicyLRU Policy = iota
	// PolicyLFU evicts the line touched least often, breaking ties by LRU.
	PolicyLFU
)

func (p Policy) String() string {
	if p == PolicyLFU {
		return "lfu"
	}
	return "lru"
}

// MarshalText encodes the policy as "lru" or "lfu".
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes "lru" or "lfu", case-insensitively.
func (p *Policy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "lru", "":
		*p = PolicyLRU
	case "lfu":
		*p = PolicyLFU
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown policy %q", text)
	}
	return nil
}

// Config holds cache configuration parameters.
type Config struct {
	// BlockBits is the width of the block offset; blocks are 2^BlockBits bytes.
	BlockBits uint `json:"block_bits" yaml:"block_bits"`
	// SetBits is the width of the set index; the cache has 2^SetBits sets.
	SetBits uint `json:"set_bits" yaml:"set_bits"`
	// LinesPerSet is the associativity.
	LinesPerSet uint `json:"lines_per_set" yaml:"lines_per_set"`
	// Policy is the replacement policy.
	Policy Policy `json:"policy" yaml:"policy"`
}

// DefaultConfig returns a 16-set, 4-way cache with 16-byte blocks and LRU
// replacement.
func DefaultConfig() Config {
	return Config{
		BlockBits:   4,
		SetBits:     4,
		LinesPerSet: 4,
		Policy:      PolicyLRU,
	}
}

// Validate checks that the configuration describes a buildable cache.
func (c Config) Validate() error {
	if c.LinesPerSet == 0 {
		return errors.Wrap(ErrInvalidConfig, "lines per set must be positive")
	}
	if c.SetBits > 20 {
		return errors.Wrapf(ErrInvalidConfig, "set bits %d exceeds 20", c.SetBits)
	}
	if c.BlockBits > 30 {
		return errors.Wrapf(ErrInvalidConfig, "block bits %d exceeds 30", c.BlockBits)
	}
	if c.Policy != PolicyLRU && c.Policy != PolicyLFU {
		return errors.Wrapf(ErrInvalidConfig, "unknown policy %d", c.Policy)
	}
	return nil
}

// NumSets returns the number of sets.
func (c Config) NumSets() int {
	return 1 << c.SetBits
}

// BlockSize returns the block size in bytes.
func (c Config) BlockSize() int {
	return 1 << c.BlockBits
}

// BlockAddr clears the block offset bits of addr.
func (c Config) BlockAddr(addr uint64) uint64 {
	return (addr >> c.BlockBits) << c.BlockBits
}

// SetIndex returns the set addr maps to.
func (c Config) SetIndex(addr uint64) int {
	return int((addr >> c.BlockBits) & (uint64(1)<<c.SetBits - 1))
}

// Tag returns the tag of addr.
func (c Config) Tag(addr uint64) uint64 {
	return addr >> (c.BlockBits + c.SetBits)
}

// LoadConfig reads a configuration file. Files ending in .yaml or .yml are
// parsed as YAML, anything else as JSON. Fields absent from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrap(err, "read cache config")
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, &config)
	} else {
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return config, errors.Wrapf(err, "parse cache config %s", path)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// SaveConfig writes config to path in the format chosen by its extension.
func SaveConfig(path string, config Config) error {
	var (
		data []byte
		err  error
	)

	if isYAML(path) {
		data, err = yaml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "encode cache config")
	}

	return errors.Wrap(os.WriteFile(path, data, 0o644), "write cache config")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
