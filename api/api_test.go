// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/alpaca/devnet"
)

func newTestDevnet(t *testing.T, accounts uint8) *devnet.Devnet {
	config := devnet.DefaultConfig()
	config.Seed = 42
	config.TotalAccounts = accounts
	config.Port = 0
	chain, err := devnet.New(config, devnet.WithClock(func() time.Time { return time.Unix(1_000, 0) }))
	require.NoError(t, err)
	return chain
}

// call performs a JSON-RPC request against [handler] and decodes the reply.
func call(t *testing.T, handler http.Handler, method string, args, reply interface{}) error {
	body, err := json2.EncodeClientRequest(ServiceName+"."+method, args)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return json2.DecodeClientResponse(rec.Body, reply)
}
