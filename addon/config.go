// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package addon

import (
	"fmt"
	"math"

	"github.com/dop251/goja"

	"github.com/ava-labs/alpaca/devnet"
)

// maxSafeInteger is the largest integer a host number holds exactly.
const maxSafeInteger = 1<<53 - 1

// DevnetConfig is the configuration object passed by the host.
type DevnetConfig struct {
	Seed          uint32
	TotalAccounts uint8
	Port          uint16

	// Optional fields. Zero values select the engine defaults.
	Host            string
	StartTime       *uint64
	BlockGeneration devnet.BlockGeneration
}

// configError describes a config object the host should not have passed.
// It is thrown to the host as a TypeError.
type configError struct {
	field  string
	reason string
}

func (e *configError) Error() string {
	return fmt.Sprintf("invalid devnet config: %s %s", e.field, e.reason)
}

// ParseConfig reads a DevnetConfig from a host value.
func ParseConfig(rt *goja.Runtime, v goja.Value) (DevnetConfig, error) {
	if !present(v) {
		return DevnetConfig{}, &configError{field: "config", reason: "must be an object"}
	}
	obj := v.ToObject(rt)

	seed, err := integerField(obj, "seed", math.MaxUint32, true)
	if err != nil {
		return DevnetConfig{}, err
	}
	totalAccounts, err := integerField(obj, "totalAccounts", math.MaxUint8, true)
	if err != nil {
		return DevnetConfig{}, err
	}
	port, err := integerField(obj, "port", math.MaxUint16, true)
	if err != nil {
		return DevnetConfig{}, err
	}
	config := DevnetConfig{
		Seed:          uint32(seed),
		TotalAccounts: uint8(totalAccounts),
		Port:          uint16(port),
	}

	if config.Host, err = stringField(obj, "host"); err != nil {
		return DevnetConfig{}, err
	}
	generation, err := stringField(obj, "blockGeneration")
	if err != nil {
		return DevnetConfig{}, err
	}
	config.BlockGeneration = devnet.BlockGeneration(generation)

	if present(obj.Get("startTime")) {
		startTime, err := integerField(obj, "startTime", maxSafeInteger, false)
		if err != nil {
			return DevnetConfig{}, err
		}
		config.StartTime = &startTime
	}
	return config, nil
}

// EngineConfig converts to the engine configuration, filling in defaults for
// the fields the host left out.
func (c DevnetConfig) EngineConfig() devnet.Config {
	config := devnet.DefaultConfig()
	config.Seed = c.Seed
	config.TotalAccounts = c.TotalAccounts
	config.Port = c.Port
	if c.Host != "" {
		config.Host = c.Host
	}
	if c.BlockGeneration != "" {
		config.BlockGeneration = c.BlockGeneration
	}
	config.StartTime = c.StartTime
	return config
}

func present(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

func integerField(obj *goja.Object, name string, max uint64, required bool) (uint64, error) {
	v := obj.Get(name)
	if !present(v) {
		if required {
			return 0, &configError{field: name, reason: "is required"}
		}
		return 0, nil
	}

	var f float64
	switch n := v.Export().(type) {
	case int64:
		f = float64(n)
	case float64:
		f = n
	default:
		return 0, &configError{field: name, reason: "must be a number"}
	}
	if math.IsNaN(f) || f != math.Trunc(f) {
		return 0, &configError{field: name, reason: "must be an integer"}
	}
	if f < 0 || f > float64(max) {
		return 0, &configError{field: name, reason: fmt.Sprintf("must be between 0 and %d", max)}
	}
	return uint64(f), nil
}

func stringField(obj *goja.Object, name string) (string, error) {
	v := obj.Get(name)
	if !present(v) {
		return "", nil
	}
	s, ok := v.Export().(string)
	if !ok {
		return "", &configError{field: name, reason: "must be a string"}
	}
	return s, nil
}
