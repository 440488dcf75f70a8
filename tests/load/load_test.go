// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// load drives several in-process devnets concurrently and checks that every
// mined block reaches the host exactly once.
package load_test

import (
	"context"
	"flag"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/dop251/goja"
	log "github.com/inconshreveable/log15"
	ginkgo "github.com/onsi/ginkgo/v2"
	"github.com/onsi/ginkgo/v2/formatter"
	"github.com/onsi/gomega"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/alpaca/addon"
	"github.com/ava-labs/alpaca/client"
	"github.com/ava-labs/alpaca/host"
)

func TestLoad(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "alpaca load test suites")
}

var (
	requestTimeout time.Duration
	totalInstances int
	readers        int
	terminalHeight uint64
)

func init() {
	flag.DurationVar(
		&requestTimeout,
		"request-timeout",
		2*time.Minute,
		"timeout for the whole load run",
	)
	flag.IntVar(
		&totalInstances,
		"instances",
		2,
		"number of devnets started in the host",
	)
	flag.IntVar(
		&readers,
		"readers",
		4,
		"number of goroutines polling each devnet while blocks are mined",
	)
	flag.Uint64Var(
		&terminalHeight,
		"terminal-height",
		50,
		"height to quit at",
	)
}

type instance struct {
	uri      string
	cli      client.Client
	accounts []ids.ShortID

	mu       sync.Mutex
	notified []uint64
}

func (inst *instance) record(number uint64) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.notified = append(inst.notified, number)
}

func (inst *instance) notifications() []uint64 {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	sorted := append([]uint64(nil), inst.notified...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}

var (
	loop      *host.Loop
	adapter   *addon.Adapter
	instances []*instance
)

var _ = ginkgo.BeforeSuite(func() {
	loop = host.New()
	adapter = addon.New(loop)
	loop.Start()

	instances = make([]*instance, totalInstances)
	for i := range instances {
		port := freePort()
		inst := &instance{uri: fmt.Sprintf("http://127.0.0.1:%d/rpc", port)}
		inst.cli = client.New(inst.uri)
		instances[i] = inst

		ready := make(chan error, 1)
		gomega.Expect(loop.RunOnLoop(func(rt *goja.Runtime) error {
			return createServer(rt, i, port, inst, ready)
		})).Should(gomega.BeTrue())

		select {
		case err := <-ready:
			gomega.Expect(err).Should(gomega.BeNil())
		case <-time.After(requestTimeout):
			ginkgo.Fail("devnet did not report ready")
		}
		outf("{{blue}}devnet ready:{{/}} %q\n", inst.uri)
	}
})

var _ = ginkgo.AfterSuite(func() {
	outf("{{red}}shutting down devnets{{/}}\n")
	adapter.Close()
	loop.Stop()
})

var _ = ginkgo.Describe("[CreateBlock]", func() {
	ginkgo.It("starts with an empty chain", func() {
		for _, inst := range instances {
			_, err := inst.cli.BlockNumber(context.Background())
			gomega.Ω(err).ShouldNot(gomega.BeNil())
			gomega.Ω(inst.notifications()).Should(gomega.BeEmpty())
		}
	})

	ginkgo.It("create new blocks", func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		g, gctx := errgroup.WithContext(ctx)

		start := time.Now()
		for _, inst := range instances {
			inst := inst
			g.Go(func() error {
				defer ginkgo.GinkgoRecover()
				return produce(gctx, inst, start)
			})
			for r := 0; r < readers; r++ {
				g.Go(func() error {
					defer ginkgo.GinkgoRecover()
					return poll(gctx, inst)
				})
			}
		}
		gomega.Ω(g.Wait()).Should(gomega.BeNil())

		expected := make([]uint64, terminalHeight+1)
		for i := range expected {
			expected[i] = uint64(i)
		}
		for _, inst := range instances {
			gomega.Eventually(inst.notifications, requestTimeout).Should(gomega.Equal(expected))
		}
	})
})

// produce mines one block per transfer until the terminal height is reached.
func produce(ctx context.Context, inst *instance, start time.Time) error {
	from, to := inst.accounts[0], inst.accounts[1]
	for {
		if _, err := inst.cli.Transfer(ctx, from, to, 1); err != nil {
			return err
		}
		blk, err := inst.cli.CreateBlock(ctx)
		if err != nil {
			return err
		}
		height := uint64(blk.Number)
		if height%10 == 0 {
			log.Info("performance", "uri", inst.uri, "height", height,
				"avg bps", float64(height+1)/time.Since(start).Seconds(),
			)
		}
		if height >= terminalHeight {
			log.Info("exiting at terminal height", "uri", inst.uri)
			return nil
		}
	}
}

// poll reads the chain head until the terminal height is reached.
func poll(ctx context.Context, inst *instance) error {
	for {
		height, err := inst.cli.BlockNumber(ctx)
		if err == nil && height >= terminalHeight {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
}

func createServer(rt *goja.Runtime, i, port int, inst *instance, ready chan<- error) error {
	exports := rt.NewObject()
	if err := adapter.Register(rt, exports); err != nil {
		return err
	}
	create, ok := goja.AssertFunction(exports.Get("createServer"))
	if !ok {
		return fmt.Errorf("createServer is not a function")
	}

	onReady := rt.ToValue(func(call goja.FunctionCall) goja.Value {
		if err := call.Argument(0); !goja.IsNull(err) && !goja.IsUndefined(err) {
			ready <- fmt.Errorf("devnet failed to start: %s", err.ToObject(rt).Get("message"))
			return goja.Undefined()
		}
		for _, acc := range call.Argument(1).Export().([]interface{}) {
			addr, err := ids.ShortFromString(acc.(map[string]interface{})["accountAddress"].(string))
			if err != nil {
				ready <- err
				return goja.Undefined()
			}
			inst.accounts = append(inst.accounts, addr)
		}
		ready <- nil
		return goja.Undefined()
	})
	onBlock := rt.ToValue(func(call goja.FunctionCall) goja.Value {
		blk := call.Argument(0).ToObject(rt)
		number, err := strconv.ParseUint(blk.Get("number").String(), 10, 64)
		if err != nil {
			log.Error("unexpected block notification", "uri", inst.uri, "error", err)
			return goja.Undefined()
		}
		inst.record(number)
		return goja.Undefined()
	})

	config := map[string]interface{}{
		"seed":          i,
		"totalAccounts": 2,
		"port":          port,
	}
	_, err := create(goja.Undefined(), rt.ToValue(config), onReady, onBlock)
	return err
}

func freePort() int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).Should(gomega.BeNil())
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// Outputs to stdout.
//
// e.g.,
//
//	Out("{{green}}{{bold}}hi there %q{{/}}", "aa")
//	Out("{{magenta}}{{bold}}hi therea{{/}} {{cyan}}{{underline}}b{{/}}")
//
// ref.
// https://github.com/onsi/ginkgo/blob/v2.0.0/formatter/formatter.go#L52-L73
func outf(format string, args ...interface{}) {
	s := formatter.F(format, args...)
	fmt.Fprint(formatter.ColorableStdOut, s)
}
