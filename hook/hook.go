// Package hook installs the per-frame present hook that gives the bridge
// a reliable render-thread execution vehicle. Each frame it drains the
// request queue, dispatches every request, queues the responses, and
// chains to the original present function.
package hook

import (
	"fmt"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/nathoo/wowbridge/host"
	"github.com/nathoo/wowbridge/offsets"
	"github.com/nathoo/wowbridge/queue"
	"github.com/nathoo/wowbridge/types"
)

var log = commonlog.GetLogger("wowbridge.hook")

// DispatchFunc runs one request on the render thread.
type DispatchFunc func(types.Request) string

// Hook owns the present-slot patch. Install walks the device chain from
// the anchor, remembers the original function, and swaps in a bound
// callback; Uninstall restores the slot.
type Hook struct {
	proc     host.Process
	offs     *offsets.Table
	queues   *queue.Pair
	dispatch DispatchFunc
	shutdown *atomic.Bool

	slotAddr  uint32
	original  uint32
	installed bool
}

// New builds an uninstalled hook.
func New(proc host.Process, offs *offsets.Table, queues *queue.Pair, dispatch DispatchFunc, shutdown *atomic.Bool) *Hook {
	return &Hook{proc: proc, offs: offs, queues: queues, dispatch: dispatch, shutdown: shutdown}
}

// Install walks *D3DPtr1 → +D3DPtr2 → vtable → +EndSceneSlot and patches
// the slot with a bound callback. Any null link aborts the install and
// leaves the host untouched; the bridge then runs hookless and the IPC
// server times out every response, which is observable and deliberate.
func (h *Hook) Install() error {
	if h.installed {
		return nil
	}

	d3d, err := h.proc.ReadPtr(h.offs.D3DPtr1)
	if err != nil || d3d == 0 {
		return fmt.Errorf("present anchor is null")
	}
	dev, err := h.proc.ReadPtr(d3d + h.offs.D3DPtr2)
	if err != nil || dev == 0 {
		return fmt.Errorf("device pointer is null")
	}
	vt, err := h.proc.ReadPtr(dev)
	if err != nil || vt == 0 {
		return fmt.Errorf("vtable pointer is null")
	}
	slot := vt + h.offs.EndSceneSlot
	orig, err := h.proc.ReadPtr(slot)
	if err != nil || orig == 0 {
		return fmt.Errorf("present slot is null")
	}

	trampoline := h.proc.Bind(h.onPresent)
	if err := h.proc.WritePtr(slot, trampoline); err != nil {
		return fmt.Errorf("patching present slot: %w", err)
	}

	h.slotAddr = slot
	h.original = orig
	h.installed = true
	log.Infof("present hook installed, original at 0x%X", orig)
	return nil
}

// Uninstall restores the original present pointer.
func (h *Hook) Uninstall() error {
	if !h.installed {
		return nil
	}
	if err := h.proc.WritePtr(h.slotAddr, h.original); err != nil {
		return fmt.Errorf("restoring present slot: %w", err)
	}
	h.installed = false
	log.Info("present hook removed")
	return nil
}

// Installed reports whether the slot is currently patched.
func (h *Hook) Installed() bool {
	return h.installed
}

// onPresent runs on the host's render thread once per frame. During
// shutdown it chains straight through without touching the queues.
func (h *Hook) onPresent(args ...uint64) uint64 {
	if !h.shutdown.Load() {
		if reqs := h.queues.DrainRequests(); len(reqs) > 0 {
			responses := make([]string, 0, len(reqs))
			for _, req := range reqs {
				responses = append(responses, h.dispatch(req))
			}
			h.queues.PushResponses(responses...)
		}
	}

	ret, err := h.proc.Call(h.original, args...)
	if err != nil {
		log.Errorf("chaining to original present failed: %v", err)
	}
	return ret
}
