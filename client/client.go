// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/rpc/v2/json2"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/alpaca/api"
)

// Client defines devnet JSON-RPC client operations.
type Client interface {
	// BlockNumber returns the number of the chain head
	BlockNumber(ctx context.Context) (uint64, error)

	// GetBlock fetches a block header and its transaction IDs. A nil number
	// selects the chain head.
	GetBlock(ctx context.Context, number *uint64) (*api.BlockReply, error)

	// GetBlockWithTxs fetches a block with its full transactions
	GetBlockWithTxs(ctx context.Context, number *uint64) (*api.BlockWithTxsReply, error)

	// GetBalance returns the balance of an account
	GetBalance(ctx context.Context, addr ids.ShortID) (uint64, error)

	// GetNonce returns the number of mined transfers sent by an account
	GetNonce(ctx context.Context, addr ids.ShortID) (uint64, error)

	// Transfer submits a transfer and returns its ID
	Transfer(ctx context.Context, from, to ids.ShortID, amount uint64) (ids.ID, error)

	// Mint submits a credit and returns its ID
	Mint(ctx context.Context, to ids.ShortID, amount uint64) (ids.ID, error)

	// CreateBlock mines the pending transactions
	CreateBlock(ctx context.Context) (*api.BlockReply, error)

	// PendingTransactions lists the transactions waiting for the next block
	PendingTransactions(ctx context.Context) ([]api.TransactionReply, error)
}

// New creates a new client object for the JSON-RPC endpoint at [uri].
func New(uri string) Client {
	return &client{uri: uri, http: http.DefaultClient}
}

type client struct {
	uri  string
	http *http.Client
}

func (cli *client) sendRequest(ctx context.Context, method string, args, reply interface{}) error {
	body, err := json2.EncodeClientRequest(api.ServiceName+"."+method, args)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cli.uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cli.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to issue %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", method, resp.StatusCode)
	}
	return json2.DecodeClientResponse(resp.Body, reply)
}

func blockArgs(number *uint64) *api.BlockArgs {
	if number == nil {
		return &api.BlockArgs{}
	}
	n := json.Uint64(*number)
	return &api.BlockArgs{Number: &n}
}

func (cli *client) BlockNumber(ctx context.Context) (uint64, error) {
	resp := new(api.BlockNumberReply)
	if err := cli.sendRequest(ctx, "blockNumber", &api.EmptyArgs{}, resp); err != nil {
		return 0, err
	}
	return uint64(resp.Number), nil
}

func (cli *client) GetBlock(ctx context.Context, number *uint64) (*api.BlockReply, error) {
	resp := new(api.BlockReply)
	err := cli.sendRequest(ctx, "getBlock", blockArgs(number), resp)
	return resp, err
}

func (cli *client) GetBlockWithTxs(ctx context.Context, number *uint64) (*api.BlockWithTxsReply, error) {
	resp := new(api.BlockWithTxsReply)
	err := cli.sendRequest(ctx, "getBlockWithTxs", blockArgs(number), resp)
	return resp, err
}

func (cli *client) GetBalance(ctx context.Context, addr ids.ShortID) (uint64, error) {
	resp := new(api.BalanceReply)
	if err := cli.sendRequest(ctx, "getBalance", &api.AddressArgs{Address: addr}, resp); err != nil {
		return 0, err
	}
	return uint64(resp.Balance), nil
}

func (cli *client) GetNonce(ctx context.Context, addr ids.ShortID) (uint64, error) {
	resp := new(api.NonceReply)
	if err := cli.sendRequest(ctx, "getNonce", &api.AddressArgs{Address: addr}, resp); err != nil {
		return 0, err
	}
	return uint64(resp.Nonce), nil
}

func (cli *client) Transfer(ctx context.Context, from, to ids.ShortID, amount uint64) (ids.ID, error) {
	resp := new(api.TxReply)
	err := cli.sendRequest(ctx, "transfer", &api.TransferArgs{
		From:   from,
		To:     to,
		Amount: json.Uint64(amount),
	}, resp)
	return resp.TxID, err
}

func (cli *client) Mint(ctx context.Context, to ids.ShortID, amount uint64) (ids.ID, error) {
	resp := new(api.TxReply)
	err := cli.sendRequest(ctx, "mint", &api.MintArgs{
		Address: to,
		Amount:  json.Uint64(amount),
	}, resp)
	return resp.TxID, err
}

func (cli *client) CreateBlock(ctx context.Context) (*api.BlockReply, error) {
	resp := new(api.BlockReply)
	err := cli.sendRequest(ctx, "createBlock", &api.EmptyArgs{}, resp)
	return resp, err
}

func (cli *client) PendingTransactions(ctx context.Context) ([]api.TransactionReply, error) {
	resp := new(api.TransactionsReply)
	if err := cli.sendRequest(ctx, "pendingTransactions", &api.EmptyArgs{}, resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}
