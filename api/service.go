// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/rpc/v2"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/alpaca/devnet"
)

// ServiceName is the JSON-RPC namespace: methods are called as devnet.<method>
const ServiceName = "devnet"

var errMissingAddress = errors.New("address is required")

// Service is the JSON-RPC API of a devnet
type Service struct{ chain *devnet.Devnet }

// NewService returns the JSON-RPC service over [chain]
func NewService(chain *devnet.Devnet) *Service {
	return &Service{chain: chain}
}

// NewJSONRPCHandler returns an http.Handler serving [service] over JSON-RPC 2.0
func NewJSONRPCHandler(service *Service) (http.Handler, error) {
	server := rpc.NewServer()
	codec := json.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(service, ServiceName)
}

// EmptyArgs are the arguments of methods that take none
type EmptyArgs struct{}

// BlockNumberReply is the reply from BlockNumber
type BlockNumberReply struct {
	Number json.Uint64 `json:"number"`
}

// BlockNumber returns the number of the chain head
func (s *Service) BlockNumber(_ *http.Request, _ *EmptyArgs, reply *BlockNumberReply) error {
	blk, err := s.chain.LatestBlock()
	if err != nil {
		return err
	}
	reply.Number = json.Uint64(blk.Number())
	return nil
}

// BlockArgs select a block by number. A missing number means the chain head.
type BlockArgs struct {
	Number *json.Uint64 `json:"number"`
}

func (s *Service) getBlock(args *BlockArgs) (*devnet.Block, error) {
	if args.Number == nil {
		return s.chain.LatestBlock()
	}
	return s.chain.BlockByNumber(uint64(*args.Number))
}

// GetBlock returns a block with the IDs of its transactions
func (s *Service) GetBlock(_ *http.Request, args *BlockArgs, reply *BlockReply) error {
	blk, err := s.getBlock(args)
	if err != nil {
		return err
	}
	*reply = FormatBlock(blk)
	return nil
}

// GetBlockWithTxs returns a block with its full transactions
func (s *Service) GetBlockWithTxs(_ *http.Request, args *BlockArgs, reply *BlockWithTxsReply) error {
	blk, err := s.getBlock(args)
	if err != nil {
		return err
	}
	*reply = FormatBlockWithTxs(blk)
	return nil
}

// AddressArgs are the arguments of account queries
type AddressArgs struct {
	Address ids.ShortID `json:"address"`
}

// BalanceReply is the reply from GetBalance
type BalanceReply struct {
	Balance json.Uint64 `json:"balance"`
}

// GetBalance returns the balance of an account as of the chain head
func (s *Service) GetBalance(_ *http.Request, args *AddressArgs, reply *BalanceReply) error {
	if args.Address == ids.ShortEmpty {
		return errMissingAddress
	}
	balance, err := s.chain.Balance(args.Address)
	reply.Balance = json.Uint64(balance)
	return err
}

// NonceReply is the reply from GetNonce
type NonceReply struct {
	Nonce json.Uint64 `json:"nonce"`
}

// GetNonce returns the number of mined transfers sent by an account
func (s *Service) GetNonce(_ *http.Request, args *AddressArgs, reply *NonceReply) error {
	if args.Address == ids.ShortEmpty {
		return errMissingAddress
	}
	nonce, err := s.chain.Nonce(args.Address)
	reply.Nonce = json.Uint64(nonce)
	return err
}

// TransferArgs are the arguments to Transfer
type TransferArgs struct {
	From   ids.ShortID `json:"from"`
	To     ids.ShortID `json:"to"`
	Amount json.Uint64 `json:"amount"`
}

// TxReply identifies a submitted transaction
type TxReply struct {
	TxID ids.ID `json:"txID"`
}

// Transfer submits a transfer between two accounts
func (s *Service) Transfer(_ *http.Request, args *TransferArgs, reply *TxReply) error {
	if args.From == ids.ShortEmpty || args.To == ids.ShortEmpty {
		return errMissingAddress
	}
	tx, err := s.chain.Transfer(args.From, args.To, uint64(args.Amount))
	if err != nil {
		return err
	}
	reply.TxID = tx.ID()
	return nil
}

// MintArgs are the arguments to Mint
type MintArgs struct {
	Address ids.ShortID `json:"address"`
	Amount  json.Uint64 `json:"amount"`
}

// Mint submits a transaction crediting an account
func (s *Service) Mint(_ *http.Request, args *MintArgs, reply *TxReply) error {
	if args.Address == ids.ShortEmpty {
		return errMissingAddress
	}
	tx, err := s.chain.Mint(args.Address, uint64(args.Amount))
	if err != nil {
		return err
	}
	reply.TxID = tx.ID()
	return nil
}

// CreateBlock mines the pending transactions
func (s *Service) CreateBlock(_ *http.Request, _ *EmptyArgs, reply *BlockReply) error {
	blk, err := s.chain.CreateBlock()
	if err != nil {
		return err
	}
	*reply = FormatBlock(blk)
	return nil
}

// TransactionsReply is a list of transactions
type TransactionsReply struct {
	Transactions []TransactionReply `json:"transactions"`
}

// PendingTransactions lists the transactions waiting for the next block
func (s *Service) PendingTransactions(_ *http.Request, _ *EmptyArgs, reply *TransactionsReply) error {
	pending := s.chain.PendingTransactions()
	reply.Transactions = make([]TransactionReply, len(pending))
	for i := range pending {
		reply.Transactions[i] = FormatTransaction(&pending[i])
	}
	return nil
}
