// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dop251/goja"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/alpaca/addon"
	"github.com/ava-labs/alpaca/host"
)

const (
	Name    = "alpaca"
	Version = "v0.1.0"
)

// defaultScript starts one devnet and logs what it reports.
const defaultScript = `
alpaca.createServer(config, function (err, accounts) {
	if (err) {
		console.error("failed to start devnet:", err.message);
		return;
	}
	accounts.forEach(function (acc) {
		console.log("account", acc.accountAddress, "privateKey", acc.privateKey, "balance", acc.balance);
	});
}, function (block) {
	console.log("block", block.number, "transactions", block.transactions ? block.transactions.length : 0);
});
`

func main() {
	c, err := getConfig()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	// Print version and exit
	if c.version {
		fmt.Printf("%s@%s\n", Name, Version)
		os.Exit(0)
	}

	lvl, err := log.LvlFromString(c.logLevel)
	if err != nil {
		fmt.Printf("couldn't parse log level: %s\n", err)
		os.Exit(1)
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	script, err := readScript(c.script)
	if err != nil {
		log.Error("failed to load host script", "error", err)
		os.Exit(1)
	}

	loop := host.New()
	adapter := addon.New(loop, addon.WithServerConfig(c.server))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop.Start()
	loop.RunOnLoop(func(rt *goja.Runtime) error {
		exports := rt.NewObject()
		if err := adapter.Register(rt, exports); err != nil {
			return err
		}
		if err := rt.Set(Name, exports); err != nil {
			return err
		}
		if err := rt.Set("config", c.devnet); err != nil {
			return err
		}
		_, err := rt.RunString(script)
		return err
	})

	<-ctx.Done()
	log.Info("shutting down")
	adapter.Close()
	loop.Stop()
}
