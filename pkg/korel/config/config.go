// Package config loads korel's runtime options: the per-atom lock timeout,
// the inference engine's fixpoint iteration cap, and its per-query
// memoization cache size. Uses the same os.ReadFile + yaml.Unmarshal into a
// plain struct idiom as korel's other config loaders, generalized from a
// domain taxonomy file to korel's own options file.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Options bounds the knowledge store's locking and the inference engine's
// search.
type Options struct {
	// LockTimeoutMS bounds how long a tell/ask waits to acquire an atom's
	// lock before giving up, in milliseconds.
	LockTimeoutMS int `yaml:"lock_timeout_ms"`
	// MaxIterations caps the number of fixpoint restart rounds a single
	// ask performs.
	MaxIterations int `yaml:"max_iterations"`
	// MemoSize bounds the per-query combination-tried cache.
	MemoSize int `yaml:"memo_size"`
}

// LockTimeout returns o.LockTimeoutMS as a time.Duration.
func (o Options) LockTimeout() time.Duration {
	return time.Duration(o.LockTimeoutMS) * time.Millisecond
}

// Default returns korel's built-in option values, matching
// kb.LockTimeout and inference/simple.DefaultConfig.
func Default() Options {
	return Options{
		LockTimeoutMS: 5000,
		MaxIterations: 25,
		MemoSize:      4096,
	}
}

// Load reads Options from a YAML file, filling in Default() for any field
// left at its zero value.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}

	opts := Default()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, err
	}
	return opts.withDefaults(), nil
}

func (o Options) withDefaults() Options {
	def := Default()
	if o.LockTimeoutMS <= 0 {
		o.LockTimeoutMS = def.LockTimeoutMS
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.MemoSize <= 0 {
		o.MemoSize = def.MemoSize
	}
	return o
}
