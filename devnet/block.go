// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devnet

import (
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// Block is a block on the simulated chain.
// The first block has number 0 and an empty parent.
type Block struct {
	PrntID ids.ID        `serialize:"true" json:"parentID"`
	Nmbr   uint64        `serialize:"true" json:"number"`
	Tmstmp int64         `serialize:"true" json:"timestamp"`
	Txs    []Transaction `serialize:"true" json:"transactions"`

	id    ids.ID
	bytes []byte
}

// ID returns the ID of this block
func (b *Block) ID() ids.ID { return b.id }

// Parent returns [b]'s parent's ID
func (b *Block) Parent() ids.ID { return b.PrntID }

// Number returns this block's number.
func (b *Block) Number() uint64 { return b.Nmbr }

// Timestamp returns the time this block was mined at
func (b *Block) Timestamp() time.Time { return time.Unix(b.Tmstmp, 0) }

// Transactions returns the transactions included in this block
func (b *Block) Transactions() []Transaction { return b.Txs }

// Bytes returns the byte repr. of this block
func (b *Block) Bytes() []byte { return b.bytes }

func newBlock(parentID ids.ID, number uint64, timestamp int64, txs []Transaction) (*Block, error) {
	block := &Block{
		PrntID: parentID,
		Nmbr:   number,
		Tmstmp: timestamp,
		Txs:    txs,
	}

	bytes, err := Codec.Marshal(CodecVersion, block)
	if err != nil {
		return nil, fmt.Errorf("couldn't marshal block %d: %w", number, err)
	}
	block.bytes = bytes
	block.id = hashing.ComputeHash256Array(bytes)
	return block, nil
}

// parseBlock parses [bytes] to a Block
func parseBlock(bytes []byte) (*Block, error) {
	block := &Block{}
	if _, err := Codec.Unmarshal(bytes, block); err != nil {
		return nil, err
	}
	block.bytes = bytes
	block.id = hashing.ComputeHash256Array(bytes)
	for i := range block.Txs {
		if err := block.Txs[i].initialize(); err != nil {
			return nil, err
		}
	}
	return block, nil
}
