package genesis

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"poolvault/native/vault"
)

// Manifest describes the pools the daemon registers at startup. Applying a
// manifest is idempotent: pools already present in the ledger are skipped, so
// restarts with the same file are safe.
type Manifest struct {
	Pools []PoolSpec `yaml:"pools"`
}

// PoolSpec is one pool entry: the pool handle and its ordered token set, each
// token optionally carrying an asset manager assignment.
type PoolSpec struct {
	Pool   string      `yaml:"pool"`
	Tokens []TokenSpec `yaml:"tokens"`
}

type TokenSpec struct {
	Address string `yaml:"address"`
	Manager string `yaml:"manager,omitempty"`
}

// LoadManifest parses and validates a YAML pool manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read manifest: %w", err)
	}
	manifest := new(Manifest)
	if err := yaml.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("genesis: parse manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

// Validate checks every address in the manifest parses.
func (m *Manifest) Validate() error {
	for i, pool := range m.Pools {
		if _, err := parseAddress(pool.Pool); err != nil {
			return fmt.Errorf("genesis: pool %d: %w", i, err)
		}
		if len(pool.Tokens) == 0 {
			return fmt.Errorf("genesis: pool %d: no tokens", i)
		}
		for j, token := range pool.Tokens {
			if _, err := parseAddress(token.Address); err != nil {
				return fmt.Errorf("genesis: pool %d token %d: %w", i, j, err)
			}
			if strings.TrimSpace(token.Manager) != "" {
				if _, err := parseAddress(token.Manager); err != nil {
					return fmt.Errorf("genesis: pool %d token %d manager: %w", i, j, err)
				}
			}
		}
	}
	return nil
}

// Apply registers every pool in the manifest that the engine does not know
// yet. It returns the number of newly registered pools.
func (m *Manifest) Apply(engine *vault.Engine) (int, error) {
	registered := 0
	for _, spec := range m.Pools {
		pool, err := parseAddress(spec.Pool)
		if err != nil {
			return registered, err
		}
		known, err := engine.IsRegisteredPool(pool)
		if err != nil {
			return registered, err
		}
		if known {
			continue
		}
		tokens := make([]common.Address, len(spec.Tokens))
		managers := make([]common.Address, len(spec.Tokens))
		for i, token := range spec.Tokens {
			tokens[i], err = parseAddress(token.Address)
			if err != nil {
				return registered, err
			}
			if strings.TrimSpace(token.Manager) != "" {
				managers[i], err = parseAddress(token.Manager)
				if err != nil {
					return registered, err
				}
			}
		}
		if err := engine.RegisterPool(pool, tokens, managers); err != nil {
			return registered, fmt.Errorf("genesis: register pool %s: %w", spec.Pool, err)
		}
		registered++
	}
	return registered, nil
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}
