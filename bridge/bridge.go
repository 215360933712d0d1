// Package bridge wires the singletons together: offsets, scripting
// adapter, dispatcher, frame hook, and IPC server, in that order, with
// teardown in reverse. The bridge is intrinsically process-wide but the
// globals are explicit here rather than ambient.
package bridge

import (
	"fmt"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/nathoo/wowbridge/dispatch"
	"github.com/nathoo/wowbridge/hook"
	"github.com/nathoo/wowbridge/host"
	"github.com/nathoo/wowbridge/ipc"
	"github.com/nathoo/wowbridge/offsets"
	"github.com/nathoo/wowbridge/queue"
	"github.com/nathoo/wowbridge/script"
)

var log = commonlog.GetLogger("wowbridge")

// Config carries the bridge's load-time parameters.
type Config struct {
	// PipeName is the RPC endpoint; empty means ipc.PipeName.
	PipeName string
	// Offsets is the address book; nil means the compiled-in defaults.
	Offsets *offsets.Table
}

// Bridge owns the component singletons and the two queues between them.
type Bridge struct {
	Offsets    *offsets.Table
	Lua        *script.Adapter
	Dispatcher *dispatch.Dispatcher
	Hook       *hook.Hook
	Server     *ipc.Server

	queues   *queue.Pair
	shutdown atomic.Bool
	started  bool
}

// New assembles a bridge against the given host process and scripting
// engine shim. Nothing touches the host until Start.
func New(cfg Config, proc host.Process, eng script.Engine) *Bridge {
	offs := cfg.Offsets
	if offs == nil {
		offs = offsets.Default()
	}
	pipeName := cfg.PipeName
	if pipeName == "" {
		pipeName = ipc.PipeName
	}

	b := &Bridge{
		Offsets: offs,
		queues:  queue.NewPair(),
	}
	b.Lua = script.New(proc, offs, eng)
	b.Dispatcher = dispatch.New(proc, offs, b.Lua)
	b.Hook = hook.New(proc, offs, b.queues, b.Dispatcher.Dispatch, &b.shutdown)
	b.Server = ipc.NewServer(pipeName, b.queues, &b.shutdown)
	return b
}

// Start installs the frame hook and opens the IPC endpoint. A null
// scripting state or a failed hook install is logged but not fatal:
// scripting requests answer with per-request errors, and a hookless
// bridge times out every non-ping response, both observable states.
func (b *Bridge) Start() error {
	if !b.Offsets.Ready() {
		return fmt.Errorf("offsets table not initialized")
	}

	if b.Lua.State() == nil {
		log.Warning("lua state pointer is null; script commands will fail per request")
	} else {
		// In-game marker so script-side tooling can detect the bridge.
		b.Lua.ExecuteSimple("WOWBRIDGE_LOADED = 1", "wowbridge")
	}

	if err := b.Hook.Install(); err != nil {
		log.Errorf("frame hook install failed: %v; running without a hook", err)
	}

	if err := b.Server.Start(); err != nil {
		b.Hook.Uninstall()
		return fmt.Errorf("starting IPC server: %w", err)
	}

	b.started = true
	log.Info("bridge started")
	return nil
}

// Stop signals shutdown, stops the IPC server, then removes the hook —
// the reverse of initialization. Safe to call more than once.
func (b *Bridge) Stop() {
	if !b.started {
		return
	}
	b.started = false

	b.shutdown.Store(true)
	b.Server.Stop()
	if err := b.Hook.Uninstall(); err != nil {
		log.Errorf("hook uninstall failed: %v", err)
	}

	// Drain whatever the controller never collected.
	b.queues.DrainRequests()
	for {
		if _, ok := b.queues.PopResponse(); !ok {
			break
		}
	}
	log.Info("bridge stopped")
}
