package hook_test

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/nathoo/wowbridge/hook"
	"github.com/nathoo/wowbridge/host/sim"
	"github.com/nathoo/wowbridge/offsets"
	"github.com/nathoo/wowbridge/queue"
	"github.com/nathoo/wowbridge/types"
)

// echoDispatch tags each request so tests can match responses to inputs.
func echoDispatch(req types.Request) string {
	return fmt.Sprintf("OK:%s:%d", req.Kind, req.SpellID)
}

func newHook(t *testing.T) (*sim.Host, *queue.Pair, *hook.Hook, *atomic.Bool) {
	t.Helper()
	offs := offsets.Default()
	h := sim.New(offs)
	t.Cleanup(h.Close)
	queues := queue.NewPair()
	var shutdown atomic.Bool
	return h, queues, hook.New(h, offs, queues, echoDispatch, &shutdown), &shutdown
}

func TestInstall_PatchesSlot(t *testing.T) {
	h, _, hk, _ := newHook(t)
	offs := offsets.Default()

	slot := presentSlot(t, h, offs)
	before, _ := h.ReadPtr(slot)

	if err := hk.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !hk.Installed() {
		t.Fatal("hook should report installed")
	}
	after, _ := h.ReadPtr(slot)
	if after == before {
		t.Fatal("present slot was not patched")
	}
}

func TestInstall_Idempotent(t *testing.T) {
	h, _, hk, _ := newHook(t)
	offs := offsets.Default()

	if err := hk.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	patched, _ := h.ReadPtr(presentSlot(t, h, offs))
	if err := hk.Install(); err != nil {
		t.Fatalf("second Install: %v", err)
	}
	again, _ := h.ReadPtr(presentSlot(t, h, offs))
	if again != patched {
		t.Fatal("second install must not re-patch")
	}
}

func TestFrame_DrainsAndChains(t *testing.T) {
	h, queues, hk, _ := newHook(t)
	if err := hk.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}

	queues.PushRequest(types.Request{Kind: types.ReqGetCooldown, SpellID: 1})
	queues.PushRequest(types.Request{Kind: types.ReqGetCooldown, SpellID: 2})
	queues.PushRequest(types.Request{Kind: types.ReqGetCooldown, SpellID: 3})
	h.Step()

	for i := 1; i <= 3; i++ {
		resp, ok := queues.PopResponse()
		if !ok {
			t.Fatalf("response %d missing", i)
		}
		want := fmt.Sprintf("OK:GET_CD:%d", i)
		if resp != want {
			t.Errorf("response %d: got %q, want %q", i, resp, want)
		}
	}
	if _, ok := queues.PopResponse(); ok {
		t.Fatal("extra response queued")
	}
	if h.Frames() != 1 {
		t.Fatalf("original present should have run once, ran %d times", h.Frames())
	}
}

func TestFrame_EmptyQueueStillChains(t *testing.T) {
	h, _, hk, _ := newHook(t)
	if err := hk.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	h.Step()
	h.Step()
	if h.Frames() != 2 {
		t.Fatalf("frames: %d", h.Frames())
	}
}

func TestShutdown_Passthrough(t *testing.T) {
	h, queues, hk, shutdown := newHook(t)
	if err := hk.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}

	shutdown.Store(true)
	queues.PushRequest(types.Request{Kind: types.ReqPing})
	h.Step()

	if _, ok := queues.PopResponse(); ok {
		t.Fatal("shutdown frame must not dispatch")
	}
	if reqs, _ := queues.Pending(); reqs != 1 {
		t.Fatal("request should stay queued during shutdown")
	}
	if h.Frames() != 1 {
		t.Fatalf("original present must still run, ran %d times", h.Frames())
	}
}

func TestUninstall_Restores(t *testing.T) {
	h, queues, hk, _ := newHook(t)
	offs := offsets.Default()

	slot := presentSlot(t, h, offs)
	orig, _ := h.ReadPtr(slot)

	if err := hk.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := hk.Uninstall(); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if hk.Installed() {
		t.Fatal("hook should report uninstalled")
	}
	restored, _ := h.ReadPtr(slot)
	if restored != orig {
		t.Fatalf("slot holds 0x%X, want original 0x%X", restored, orig)
	}

	// Frames after uninstall run the host's own present untouched.
	queues.PushRequest(types.Request{Kind: types.ReqPing})
	h.Step()
	if _, ok := queues.PopResponse(); ok {
		t.Fatal("uninstalled hook must not dispatch")
	}
	if h.Frames() != 1 {
		t.Fatalf("frames: %d", h.Frames())
	}
}

func TestInstall_FailsOnBrokenChain(t *testing.T) {
	cases := []struct {
		name    string
		corrupt func(h *sim.Host, offs *offsets.Table)
	}{
		{"anchor unmapped", func(h *sim.Host, offs *offsets.Table) {
			h.Unmap(offs.D3DPtr1)
		}},
		{"anchor null", func(h *sim.Host, offs *offsets.Table) {
			h.WritePtr(offs.D3DPtr1, 0)
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			offs := offsets.Default()
			h := sim.New(offs)
			defer h.Close()
			var shutdown atomic.Bool
			hk := hook.New(h, offs, queue.NewPair(), echoDispatch, &shutdown)

			c.corrupt(h, offs)
			if err := hk.Install(); err == nil {
				t.Fatal("Install should fail on a broken present chain")
			}
			if hk.Installed() {
				t.Fatal("failed install must leave the hook uninstalled")
			}
		})
	}
}

// presentSlot walks the device chain the way the hook does.
func presentSlot(t *testing.T, h *sim.Host, offs *offsets.Table) uint32 {
	t.Helper()
	d3d, err := h.ReadPtr(offs.D3DPtr1)
	if err != nil {
		t.Fatalf("anchor: %v", err)
	}
	dev, err := h.ReadPtr(d3d + offs.D3DPtr2)
	if err != nil {
		t.Fatalf("device: %v", err)
	}
	vt, err := h.ReadPtr(dev)
	if err != nil {
		t.Fatalf("vtable: %v", err)
	}
	return vt + offs.EndSceneSlot
}
