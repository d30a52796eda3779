// Command pntx-probe is an operator diagnostics tool: it drives one real
// transaction through the engine against a given origin and prints the
// outcome, and can optionally probe the same origin over HTTP/3 purely as
// a side-by-side reachability comparison. It is not part of the FSM's
// request/response path and never feeds an HTTP/3 result back into the
// engine — spec.md's "no HTTP/2/3 negotiation" Non-goal applies to the
// transaction engine itself, not to this separate operator tool.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/pubnub/pntx/internal/engine"
	"github.com/pubnub/pntx/internal/engine/parser"
	"github.com/pubnub/pntx/internal/runtime/netstack"
	"github.com/pubnub/pntx/internal/runtime/pal"
	"github.com/pubnub/pntx/internal/telemetry/log"
	"github.com/pubnub/pntx/internal/version"
)

func main() {
	origin := flag.String("origin", "", "host[:port] to probe")
	path := flag.String("path", "/", "request path")
	timeout := flag.Duration("timeout", 10*time.Second, "transaction deadline")
	probeHTTP3 := flag.Bool("http3", false, "also probe the origin over HTTP/3 (side-by-side, not fed back to the engine)")
	flag.Parse()

	if *origin == "" {
		fmt.Fprintln(os.Stderr, "pntx-probe: -origin is required")
		os.Exit(2)
	}

	logger := log.Named("pntx-probe", hclog.Info)
	fmt.Printf("pntx-probe %s -> %s%s\n", version.UserAgent(), *origin, *path)

	if err := runTransaction(logger, *origin, *path, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "transaction probe failed: %v\n", err)
	}

	if *probeHTTP3 {
		probeOverHTTP3(*origin, *path, *timeout)
	}
}

func runTransaction(logger log.Logger, origin, path string, timeout time.Duration) error {
	socket := pal.NewNetSocket(timeout)
	defer func() { _ = socket.Shutdown() }()

	// A single real transaction only ever needs one dispatcher goroutine
	// draining one Context's readiness callbacks, but QueueNotifier is the
	// same production pal.Notifier a multi-connection host would run: this
	// is where the many-producers/one-consumer ring buffer actually gets
	// exercised end to end, rather than only in isolation.
	notifier := pal.NewQueueNotifier(64, 1)
	defer notifier.Close()

	ctx := engine.NewContext(engine.Options{
		Socket:   socket,
		Notifier: notifier,
		Parsers:  parser.DefaultTable(),
		Origin:   origin,
		Logger:   logger.HCLog(),
	})

	start := time.Now()
	if !ctx.Start(parser.Generic, path) {
		return fmt.Errorf("context not in a startable state")
	}
	notifier.EnqueueForProcessing(ctx)

	// NetSocket's WatchInEvents/WatchOutEvents arm the poller but leave its
	// readiness handlers as no-ops (spec.md §5: turning raw readiness into a
	// re-dispatch is left to whatever long-lived host embeds the engine, out
	// of this core's scope). Lacking that host, pntx-probe re-enqueues ctx
	// itself on a short tick so the dispatcher goroutine keeps making
	// progress against the connect/send/read goroutines NetSocket runs in
	// the background.
	ticker := time.NewTicker(5 * time.Millisecond)
	stopTicking := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				notifier.RequeueForProcessing(ctx)
			case <-stopTicking:
				return
			}
		}
	}()

	var outcome *pal.Outcome
	select {
	case o := <-notifier.Outcomes():
		outcome = &o
	case <-time.After(timeout):
	}
	ticker.Stop()
	close(stopTicking)
	elapsed := time.Since(start)

	if outcome == nil {
		fmt.Printf("engine result: timed out waiting for a terminal outcome after %s\n", elapsed)
		return nil
	}
	fmt.Printf("engine result: last_result=%s http_code=%d elapsed=%s\n",
		ctx.LastResult(), ctx.HTTPCode(), elapsed)
	if cause := ctx.LastError(); cause != nil {
		fmt.Printf("cause: %s\n", cause.Error())
	}
	return nil
}

// probeOverHTTP3 is a standalone reachability check using the teacher's
// HTTP3Client helper; its result is printed only, never consumed by the
// transaction engine above.
func probeOverHTTP3(origin, path string, timeout time.Duration) {
	client := netstack.HTTP3Client(&tls.Config{InsecureSkipVerify: false}, timeout)
	defer netstack.ShutdownHTTP3(client)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+origin+path, nil)
	if err != nil {
		fmt.Printf("http3 probe: building request: %v\n", err)
		return
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("http3 probe: %v (elapsed=%s)\n", err, time.Since(start))
		return
	}
	defer resp.Body.Close()
	fmt.Printf("http3 probe: status=%d elapsed=%s\n", resp.StatusCode, time.Since(start))
}
