// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devnet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const blockCacheSize = 1024

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database objects.
	blockPrefix   = []byte("block")
	heightPrefix  = []byte("height")
	balancePrefix = []byte("balance")
	noncePrefix   = []byte("nonce")
)

// state is the ledger and block store of one devnet. It is not safe for
// concurrent use; Devnet serializes access to it.
type state struct {
	vDB         *versiondb.Database
	blockIndex  database.Database
	heightIndex database.Database
	balances    database.Database
	nonces      database.Database

	blkCache cache.Cacher

	lastAccepted *Block
}

func newState() *state {
	vDB := versiondb.New(memdb.New())
	return &state{
		vDB:         vDB,
		blockIndex:  prefixdb.New(blockPrefix, vDB),
		heightIndex: prefixdb.New(heightPrefix, vDB),
		balances:    prefixdb.New(balancePrefix, vDB),
		nonces:      prefixdb.New(noncePrefix, vDB),
		blkCache:    &cache.LRU{Size: blockCacheSize},
	}
}

func (s *state) getBlock(blkID ids.ID) (*Block, error) {
	if blkIntf, ok := s.blkCache.Get(blkID); ok {
		return blkIntf.(*Block), nil
	}
	blkBytes, err := s.blockIndex.Get(blkID[:])
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get block %s: %w", blkID, err)
	}
	blk, err := parseBlock(blkBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse block %s: %w", blkID, err)
	}
	s.blkCache.Put(blkID, blk)
	return blk, nil
}

func (s *state) getBlockIDAtHeight(height uint64) (ids.ID, error) {
	blkIDBytes, err := s.heightIndex.Get(uint64Bytes(height))
	if errors.Is(err, database.ErrNotFound) {
		return ids.Empty, ErrBlockNotFound
	}
	if err != nil {
		return ids.Empty, fmt.Errorf("failed to get height index at %d: %w", height, err)
	}
	return ids.ToID(blkIDBytes)
}

func (s *state) putBlock(block *Block) error {
	if err := s.heightIndex.Put(uint64Bytes(block.Number()), block.id[:]); err != nil {
		return fmt.Errorf("failed to put block %s into height index: %w", block.ID(), err)
	}
	if err := s.blockIndex.Put(block.id[:], block.bytes); err != nil {
		return fmt.Errorf("failed to put block %s into block index: %w", block.ID(), err)
	}
	s.blkCache.Put(block.id, block)
	return nil
}

func (s *state) getBalance(addr ids.ShortID) (uint64, error) {
	return getUint64(s.balances, addr[:])
}

func (s *state) setBalance(addr ids.ShortID, balance uint64) error {
	return s.balances.Put(addr[:], uint64Bytes(balance))
}

func (s *state) getNonce(addr ids.ShortID) (uint64, error) {
	return getUint64(s.nonces, addr[:])
}

func (s *state) setNonce(addr ids.ShortID, nonce uint64) error {
	return s.nonces.Put(addr[:], uint64Bytes(nonce))
}

// apply executes [tx] against the ledger. The caller commits or aborts.
func (s *state) apply(tx *Transaction) error {
	if tx.Kind == Transfer {
		balance, err := s.getBalance(tx.From)
		if err != nil {
			return err
		}
		if balance < tx.Amount {
			return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, tx.From, balance, tx.Amount)
		}
		if err := s.setBalance(tx.From, balance-tx.Amount); err != nil {
			return err
		}
		if err := s.setNonce(tx.From, tx.Nonce+1); err != nil {
			return err
		}
	}
	balance, err := s.getBalance(tx.To)
	if err != nil {
		return err
	}
	if balance+tx.Amount < balance {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, tx.To)
	}
	return s.setBalance(tx.To, balance+tx.Amount)
}

// accept stores [block], makes it the chain head and flushes the ledger.
func (s *state) accept(block *Block) error {
	defer s.vDB.Abort()

	if err := s.putBlock(block); err != nil {
		return err
	}
	if err := s.vDB.Commit(); err != nil {
		return fmt.Errorf("failed to commit database accepting block %s: %w", block.id, err)
	}
	s.lastAccepted = block
	return nil
}

func getUint64(db database.Database, key []byte) (uint64, error) {
	b, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(b) != wrappers.LongLen {
		return 0, fmt.Errorf("expected %d bytes, found %d", wrappers.LongLen, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(b, v)
	return b
}
