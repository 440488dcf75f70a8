// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devnet

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// TxKind identifies what a transaction does to the ledger.
type TxKind uint8

const (
	// Transfer moves funds between two accounts.
	Transfer TxKind = iota
	// Mint credits an account out of thin air.
	Mint
)

func (k TxKind) String() string {
	switch k {
	case Transfer:
		return "transfer"
	case Mint:
		return "mint"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Transaction is a ledger operation waiting to be, or already, included in
// a block. Mint transactions leave [From] empty.
type Transaction struct {
	Kind   TxKind      `serialize:"true" json:"kind"`
	From   ids.ShortID `serialize:"true" json:"from"`
	To     ids.ShortID `serialize:"true" json:"to"`
	Amount uint64      `serialize:"true" json:"amount"`
	Nonce  uint64      `serialize:"true" json:"nonce"`

	id ids.ID
}

// ID returns the hash of the transaction's serialized form
func (tx *Transaction) ID() ids.ID { return tx.id }

func (tx *Transaction) initialize() error {
	bytes, err := Codec.Marshal(CodecVersion, tx)
	if err != nil {
		return fmt.Errorf("couldn't marshal transaction: %w", err)
	}
	tx.id = hashing.ComputeHash256Array(bytes)
	return nil
}
