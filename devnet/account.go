// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devnet

import (
	"encoding/binary"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/crypto"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

// Account is a predeployed account funded at genesis.
type Account struct {
	Address        ids.ShortID
	PublicKey      []byte
	PrivateKey     []byte
	InitialBalance uint64
}

var factory = crypto.FactorySECP256K1R{}

// deriveAccounts deterministically creates [n] accounts from [seed].
// Private key i is SHA-256(seed || i), both big endian.
func deriveAccounts(seed uint32, n uint8, balance uint64) ([]Account, error) {
	accounts := make([]Account, 0, n)
	buf := make([]byte, wrappers.IntLen+wrappers.ByteLen)
	binary.BigEndian.PutUint32(buf, seed)
	for i := 0; i < int(n); i++ {
		buf[wrappers.IntLen] = byte(i)
		sk, err := factory.ToPrivateKey(hashing.ComputeHash256(buf))
		if err != nil {
			return nil, fmt.Errorf("couldn't derive account %d: %w", i, err)
		}
		pk := sk.PublicKey()
		accounts = append(accounts, Account{
			Address:        pk.Address(),
			PublicKey:      pk.Bytes(),
			PrivateKey:     sk.Bytes(),
			InitialBalance: balance,
		})
	}
	return accounts, nil
}
