// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devnet

import "errors"

var (
	ErrNoBlocks               = errors.New("no blocks have been created")
	ErrBlockNotFound          = errors.New("block not found")
	ErrUnknownBlockGeneration = errors.New("unknown block generation mode")
	ErrInvalidHost            = errors.New("host is not an IP address")
	ErrZeroInitialBalance     = errors.New("predeployed accounts need a non-zero initial balance")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrZeroAmount             = errors.New("amount must be greater than zero")
	ErrUnknownAccount         = errors.New("unknown account")
	ErrTimeInPast             = errors.New("time is earlier than the latest block")
	ErrBalanceOverflow        = errors.New("balance overflow")
)

// Error is returned by every engine operation that fails. It marks the
// failure as originating in the simulation itself.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var derr *Error
	if errors.As(err, &derr) {
		return err
	}
	return &Error{Op: op, Err: err}
}
