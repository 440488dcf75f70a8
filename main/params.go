// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/alpaca/api"
	"github.com/ava-labs/alpaca/devnet"
)

const (
	versionKey         = "version"
	seedKey            = "seed"
	accountsKey        = "accounts"
	hostKey            = "host"
	portKey            = "port"
	startTimeKey       = "start-time"
	blockGenerationKey = "block-generation"
	scriptKey          = "script"
	logLevelKey        = "log-level"
	rateLimitKey       = "requests-per-second"
	burstKey           = "burst"
	shutdownTimeoutKey = "shutdown-timeout"

	envPrefix = "alpaca"
)

// config is the resolved command line configuration.
type config struct {
	version  bool
	script   string
	logLevel string
	devnet   map[string]interface{}
	server   api.Config
}

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("alpaca", flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints the version and quits")
	fs.Uint(seedKey, devnet.DefaultSeed, "Seed the predeployed accounts are derived from")
	fs.Uint(accountsKey, devnet.DefaultTotalAccounts, "Number of predeployed accounts (0-255)")
	fs.String(hostKey, devnet.DefaultHost, "Address the server listens on")
	fs.Uint(portKey, devnet.DefaultPort, "Port the server listens on, 0 for any")
	fs.Int64(startTimeKey, -1, "Unix timestamp the chain clock starts at, -1 for now")
	fs.String(blockGenerationKey, string(devnet.OnDemand), "When to mine: demand or transaction")
	fs.String(scriptKey, "", "Host script to run instead of the default one")
	fs.String(logLevelKey, "info", "Log level (debug, info, warn, error)")
	fs.Float64(rateLimitKey, 0, "Request rate limit, 0 to disable")
	fs.Int(burstKey, 0, "Request burst allowed above the rate limit")
	fs.Duration(shutdownTimeoutKey, api.DefaultConfig().ShutdownTimeout, "Time allowed for in-flight requests on shutdown")

	return fs
}

// getViper returns the viper environment for the binary
func getViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}
	return v, nil
}

func getConfig() (config, error) {
	v, err := getViper()
	if err != nil {
		return config{}, err
	}

	accounts := v.GetUint(accountsKey)
	if accounts > 255 {
		return config{}, fmt.Errorf("--%s must be at most 255, got %d", accountsKey, accounts)
	}
	port := v.GetUint(portKey)
	if port > 65535 {
		return config{}, fmt.Errorf("--%s must be at most 65535, got %d", portKey, port)
	}

	c := config{
		version:  v.GetBool(versionKey),
		script:   v.GetString(scriptKey),
		logLevel: v.GetString(logLevelKey),
		devnet: map[string]interface{}{
			"seed":            v.GetUint32(seedKey),
			"totalAccounts":   accounts,
			"host":            v.GetString(hostKey),
			"port":            port,
			"blockGeneration": v.GetString(blockGenerationKey),
		},
		server: api.DefaultConfig(),
	}
	if startTime := v.GetInt64(startTimeKey); startTime >= 0 {
		c.devnet["startTime"] = startTime
	}
	c.server.RequestsPerSecond = v.GetFloat64(rateLimitKey)
	c.server.Burst = v.GetInt(burstKey)
	c.server.ShutdownTimeout = v.GetDuration(shutdownTimeoutKey)
	return c, nil
}

func readScript(path string) (string, error) {
	if path == "" {
		return defaultScript, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read script %q: %w", path, err)
	}
	return string(b), nil
}

