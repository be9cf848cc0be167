package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
)

// Profile is an optional TOML evaluation profile. It provides
// per-experiment defaults that would otherwise be repeated on every
// invocation; flags set explicitly on the command line still win.
//
//	[pool]
//	agents = 10
//	parallel = 1
//
//	[inference]
//	timeout = "60s"
//	retries = 2
type Profile struct {
	Pool      PoolProfile      `toml:"pool"`
	Inference InferenceProfile `toml:"inference"`
}

// PoolProfile configures the agent pool
type PoolProfile struct {
	Agents   int `toml:"agents"`
	Parallel int `toml:"parallel"`
}

// InferenceProfile configures the inference call budget. Retries is a
// pointer so that an explicit zero-retry budget is distinguishable from an
// absent key.
type InferenceProfile struct {
	Timeout string `toml:"timeout"`
	Retries *int   `toml:"retries"`
}

// Validate checks if the Profile is valid
func (p *Profile) Validate() error {
	if p.Pool.Agents < 0 {
		return goerr.New("pool.agents must not be negative", goerr.V("agents", p.Pool.Agents))
	}
	if p.Pool.Parallel < 0 {
		return goerr.New("pool.parallel must not be negative", goerr.V("parallel", p.Pool.Parallel))
	}
	if p.Inference.Retries != nil && *p.Inference.Retries < 0 {
		return goerr.New("inference.retries must not be negative", goerr.V("retries", *p.Inference.Retries))
	}
	if _, err := p.InferenceTimeout(); err != nil {
		return err
	}
	return nil
}

// InferenceTimeout parses the configured timeout, 0 when unset.
func (p *Profile) InferenceTimeout() (time.Duration, error) {
	if p.Inference.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Inference.Timeout)
	if err != nil {
		return 0, goerr.Wrap(err, "invalid inference.timeout", goerr.V("timeout", p.Inference.Timeout))
	}
	if d <= 0 {
		return 0, goerr.New("inference.timeout must be positive", goerr.V("timeout", p.Inference.Timeout))
	}
	return d, nil
}

// LoadProfile loads an evaluation profile from a TOML file
func LoadProfile(path string) (*Profile, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read profile file", goerr.V("path", path))
	}

	var profile Profile
	if err := toml.Unmarshal(data, &profile); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML profile", goerr.V("path", path))
	}

	if err := profile.Validate(); err != nil {
		return nil, goerr.Wrap(err, "profile validation failed", goerr.V("path", path))
	}

	return &profile, nil
}
