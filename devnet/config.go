// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devnet

import (
	"fmt"
	"net"
)

// BlockGeneration controls when pending transactions are mined.
type BlockGeneration string

const (
	// OnDemand mines only when CreateBlock is called.
	OnDemand BlockGeneration = "demand"
	// OnTransaction mines one block for every accepted transaction.
	OnTransaction BlockGeneration = "transaction"

	DefaultHost           = "127.0.0.1"
	DefaultPort           = 5050
	DefaultSeed           = 0
	DefaultTotalAccounts  = 10
	DefaultInitialBalance = uint64(1_000_000_000_000_000_000)
)

// Config is the engine configuration.
type Config struct {
	Seed            uint32
	TotalAccounts   uint8
	Host            string
	Port            uint16
	InitialBalance  uint64
	BlockGeneration BlockGeneration

	// StartTime, if set, is the unix timestamp (seconds) the chain clock
	// should report at construction.
	StartTime *uint64
}

// DefaultConfig returns the configuration used when a field is not supplied.
func DefaultConfig() Config {
	return Config{
		Seed:            DefaultSeed,
		TotalAccounts:   DefaultTotalAccounts,
		Host:            DefaultHost,
		Port:            DefaultPort,
		InitialBalance:  DefaultInitialBalance,
		BlockGeneration: OnDemand,
	}
}

// Verify returns nil iff [c] can be used to construct a devnet.
func (c Config) Verify() error {
	switch c.BlockGeneration {
	case OnDemand, OnTransaction:
	default:
		return &Error{Op: "verify config", Err: fmt.Errorf("%w: %q", ErrUnknownBlockGeneration, c.BlockGeneration)}
	}
	if net.ParseIP(c.Host) == nil {
		return &Error{Op: "verify config", Err: fmt.Errorf("%w: %q", ErrInvalidHost, c.Host)}
	}
	if c.InitialBalance == 0 && c.TotalAccounts > 0 {
		return &Error{Op: "verify config", Err: ErrZeroInitialBalance}
	}
	return nil
}

// Address returns the host:port the server should listen on.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}
