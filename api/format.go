// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"encoding/hex"
	"strconv"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/alpaca/devnet"
)

// AccountReply describes a predeployed account. Keys and balance are 0x
// prefixed hex; the address is in the same form RPC arguments take.
type AccountReply struct {
	AccountAddress string `json:"accountAddress"`
	PublicKey      string `json:"publicKey"`
	PrivateKey     string `json:"privateKey"`
	Balance        string `json:"balance"`
}

// TransactionReply is the API representation of a transaction
type TransactionReply struct {
	TxID   ids.ID      `json:"txID"`
	Kind   string      `json:"kind"`
	From   ids.ShortID `json:"from"`
	To     ids.ShortID `json:"to"`
	Amount json.Uint64 `json:"amount"`
	Nonce  json.Uint64 `json:"nonce"`
}

// BlockReply is a block header with the IDs of its transactions
type BlockReply struct {
	BlockID      ids.ID      `json:"blockID"`
	ParentID     ids.ID      `json:"parentID"`
	Number       json.Uint64 `json:"number"`
	Timestamp    json.Uint64 `json:"timestamp"`
	Transactions []ids.ID    `json:"transactions"`
}

// BlockWithTxsReply is a block header with its full transactions
type BlockWithTxsReply struct {
	BlockID      ids.ID             `json:"blockID"`
	ParentID     ids.ID             `json:"parentID"`
	Number       json.Uint64        `json:"number"`
	Timestamp    json.Uint64        `json:"timestamp"`
	Transactions []TransactionReply `json:"transactions"`
}

// FormatAccount converts an engine account record.
func FormatAccount(acc devnet.Account) AccountReply {
	return AccountReply{
		AccountAddress: acc.Address.String(),
		PublicKey:      hexString(acc.PublicKey),
		PrivateKey:     hexString(acc.PrivateKey),
		Balance:        "0x" + strconv.FormatUint(acc.InitialBalance, 16),
	}
}

// FormatAccounts converts every account, keeping their order.
func FormatAccounts(accounts []devnet.Account) []AccountReply {
	replies := make([]AccountReply, len(accounts))
	for i, acc := range accounts {
		replies[i] = FormatAccount(acc)
	}
	return replies
}

// FormatTransaction converts an engine transaction.
func FormatTransaction(tx *devnet.Transaction) TransactionReply {
	return TransactionReply{
		TxID:   tx.ID(),
		Kind:   tx.Kind.String(),
		From:   tx.From,
		To:     tx.To,
		Amount: json.Uint64(tx.Amount),
		Nonce:  json.Uint64(tx.Nonce),
	}
}

// FormatBlock converts an engine block, listing only transaction IDs.
func FormatBlock(blk *devnet.Block) BlockReply {
	txs := blk.Transactions()
	txIDs := make([]ids.ID, len(txs))
	for i := range txs {
		txIDs[i] = txs[i].ID()
	}
	return BlockReply{
		BlockID:      blk.ID(),
		ParentID:     blk.Parent(),
		Number:       json.Uint64(blk.Number()),
		Timestamp:    json.Uint64(blk.Timestamp().Unix()),
		Transactions: txIDs,
	}
}

// FormatBlockWithTxs converts an engine block with full transactions.
func FormatBlockWithTxs(blk *devnet.Block) BlockWithTxsReply {
	txs := blk.Transactions()
	replies := make([]TransactionReply, len(txs))
	for i := range txs {
		replies[i] = FormatTransaction(&txs[i])
	}
	return BlockWithTxsReply{
		BlockID:      blk.ID(),
		ParentID:     blk.Parent(),
		Number:       json.Uint64(blk.Number()),
		Timestamp:    json.Uint64(blk.Timestamp().Unix()),
		Transactions: replies,
	}
}

func hexString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
