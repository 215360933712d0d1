// Package sim provides an in-memory stand-in for the 32-bit host process:
// a sparse memory map laid out from the offsets table, a native-function
// registry, a gopher-lua engine exposing the host's script API, and a
// render loop that invokes whatever address sits in the present vtable
// slot each frame.
//
// Every bridge component runs unmodified against it, which makes it both
// the test double for the core contracts and the engine behind the
// runnable wowbridge binary.
package sim

import (
	"sync"
	"time"

	"github.com/tliron/commonlog"
	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/wowbridge/host"
	"github.com/nathoo/wowbridge/offsets"
	"github.com/nathoo/wowbridge/script"
)

var log = commonlog.GetLogger("wowbridge.sim")

// Synthetic addresses for the structures the bridge walks. Arbitrary but
// stable, so logs are readable.
const (
	luaStateAddr = 0x22AA0000
	d3dObjAddr   = 0x33000000
	deviceAddr   = 0x33001000
	vtableAddr   = 0x33002000
	ccAddr       = 0x44000000
	omAddr       = 0x44100000
	objBase      = 0x55000000
	bindBase     = 0xF0000000
)

// SpellDef is one entry of the simulated host's spellbook, in the shape
// the native spell-info call returns.
type SpellDef struct {
	Name       string
	Rank       string
	Icon       string
	Cost       float64
	PowerType  int
	CastTimeMs float64
	MinRange   float64
	MaxRange   float64
	NoMaxRange bool // host omits the max-range slot
}

// Cooldown is the triple the script-level GetSpellCooldown returns.
type Cooldown struct {
	Start    float64
	Duration float64
	Enabled  int
}

// CastCall records one invocation of the native cast function, argument
// for argument.
type CastCall struct {
	SpellID    uint64
	Arg2       uint64
	TargetGUID uint64
	Arg4       uint64
}

// Host simulates the host process. The zero value is not usable; New lays
// out memory and registers the natives from an offsets table.
type Host struct {
	offs *offsets.Table

	mu       sync.Mutex
	mem      map[uint32]uint64
	natives  map[uint32]func(args ...uint64) uint64
	luaNat   map[uint32]func(s script.State) int
	nextBind uint32

	state *simState // nil once the engine is torn down

	// Behavior knobs, all guarded by mu.
	timeFn     func() float64
	spells     map[int32]SpellDef
	cooldowns  map[int32]Cooldown
	rangeFn    func(spellName, unit string) lua.LValue
	castResult byte
	castCalls  []CastCall
	objects    map[uint64]uint32
	nextObj    uint32
	hemiFn     func(observer, observed uint32) bool

	frames uint64
}

// New builds a simulated host laid out for the given offsets table, with
// the scripting engine up and a minimal default world: lua state anchored,
// present chain walkable, player GUID 0x1, combo points 0, target GUID 0.
func New(offs *offsets.Table) *Host {
	h := &Host{
		offs:      offs,
		mem:       make(map[uint32]uint64),
		natives:   make(map[uint32]func(args ...uint64) uint64),
		luaNat:    make(map[uint32]func(s script.State) int),
		nextBind:  bindBase,
		spells:    make(map[int32]SpellDef),
		cooldowns: make(map[int32]Cooldown),
		objects:   make(map[uint64]uint32),
		nextObj:   objBase,
	}

	start := time.Now()
	h.timeFn = func() float64 { return time.Since(start).Seconds() }
	h.rangeFn = func(string, string) lua.LValue { return lua.LNil }
	h.hemiFn = func(uint32, uint32) bool { return false }

	// Scripting state anchor.
	h.mem[offs.LuaStateAnchor] = luaStateAddr

	// Present chain: *D3DPtr1 → +D3DPtr2 → vtable → +EndSceneSlot.
	h.mem[offs.D3DPtr1] = d3dObjAddr
	h.mem[d3dObjAddr+offs.D3DPtr2] = deviceAddr
	h.mem[deviceAddr] = vtableAddr
	endScene := h.Bind(func(args ...uint64) uint64 {
		h.mu.Lock()
		h.frames++
		h.mu.Unlock()
		return 0
	})
	h.mem[vtableAddr+offs.EndSceneSlot] = uint64(endScene)

	// Object manager chain and static data.
	h.mem[offs.ClientConnection] = ccAddr
	h.mem[ccAddr+offs.ObjectManagerOffset] = omAddr
	h.mem[omAddr+offs.LocalGUIDOffset] = 0x1
	h.mem[offs.ComboPointsAddr] = 0
	h.mem[offs.TargetGUIDAddr] = 0

	h.registerNatives()
	h.startLua()
	return h
}

// --- host.Process ---

func (h *Host) ReadPtr(addr uint32) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cell, ok := h.mem[addr]
	if !ok {
		return 0, host.ErrBadAddress
	}
	return uint32(cell), nil
}

func (h *Host) ReadU64(addr uint32) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cell, ok := h.mem[addr]
	if !ok {
		return 0, host.ErrBadAddress
	}
	return cell, nil
}

func (h *Host) ReadU8(addr uint32) (byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cell, ok := h.mem[addr]
	if !ok {
		return 0, host.ErrBadAddress
	}
	return byte(cell), nil
}

func (h *Host) WritePtr(addr uint32, val uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.mem[addr]; !ok {
		return host.ErrBadAddress
	}
	h.mem[addr] = uint64(val)
	return nil
}

func (h *Host) Call(addr uint32, args ...uint64) (uint64, error) {
	h.mu.Lock()
	fn, ok := h.natives[addr]
	h.mu.Unlock()
	if !ok {
		return 0, host.ErrBadCall
	}
	return fn(args...), nil
}

func (h *Host) Bind(fn func(args ...uint64) uint64) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	addr := h.nextBind
	h.nextBind += 0x10
	h.natives[addr] = fn
	return addr
}

// --- frames ---

// Step runs one frame: read the present slot and call whatever address it
// holds, exactly as the host's render loop would.
func (h *Host) Step() {
	// Walk the chain fresh each frame; a hook may have patched the slot.
	d3d, err := h.ReadPtr(h.offs.D3DPtr1)
	if err != nil {
		return
	}
	dev, err := h.ReadPtr(d3d + h.offs.D3DPtr2)
	if err != nil {
		return
	}
	vt, err := h.ReadPtr(dev)
	if err != nil {
		return
	}
	fn, err := h.ReadPtr(vt + h.offs.EndSceneSlot)
	if err != nil {
		return
	}
	if _, err := h.Call(fn, uint64(deviceAddr)); err != nil {
		log.Errorf("frame call failed: %v", err)
	}
}

// RunFrames steps a frame every interval until the returned stop function
// is called.
func (h *Host) RunFrames(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				h.Step()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Frames reports how many times the original present function ran.
func (h *Host) Frames() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

// --- world knobs ---

// SetTimeFunc replaces the clock behind the script-level GetTime.
func (h *Host) SetTimeFunc(fn func() float64) {
	h.mu.Lock()
	h.timeFn = fn
	h.mu.Unlock()
}

// SetSpell installs a spellbook entry served by the native spell-info call.
func (h *Host) SetSpell(id int32, def SpellDef) {
	h.mu.Lock()
	h.spells[id] = def
	h.mu.Unlock()
}

// SetCooldown sets the triple GetSpellCooldown returns for a spell.
// Unset spells report (0, 0, 1): off cooldown.
func (h *Host) SetCooldown(id int32, cd Cooldown) {
	h.mu.Lock()
	h.cooldowns[id] = cd
	h.mu.Unlock()
}

// SetRangeFunc controls what the script-level IsSpellInRange returns.
func (h *Host) SetRangeFunc(fn func(spellName, unit string) lua.LValue) {
	h.mu.Lock()
	h.rangeFn = fn
	h.mu.Unlock()
}

// SetCastResult sets the byte the native cast function returns.
func (h *Host) SetCastResult(b byte) {
	h.mu.Lock()
	h.castResult = b
	h.mu.Unlock()
}

// CastCalls returns every recorded native cast invocation.
func (h *Host) CastCalls() []CastCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]CastCall(nil), h.castCalls...)
}

// AddObject registers an in-world object and returns its address, for the
// find-by-GUID native.
func (h *Host) AddObject(guid uint64) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextObj += 0x100
	h.objects[guid] = h.nextObj
	return h.nextObj
}

// RemoveObject drops an object so lookups fail.
func (h *Host) RemoveObject(guid uint64) {
	h.mu.Lock()
	delete(h.objects, guid)
	h.mu.Unlock()
}

// SetHemisphereFunc controls the positional native: whether the observed
// object sits in the observer's front hemisphere.
func (h *Host) SetHemisphereFunc(fn func(observer, observed uint32) bool) {
	h.mu.Lock()
	h.hemiFn = fn
	h.mu.Unlock()
}

// SetPlayerGUID writes the player GUID into the object-manager struct.
func (h *Host) SetPlayerGUID(guid uint64) {
	h.mu.Lock()
	h.mem[omAddr+h.offs.LocalGUIDOffset] = guid
	h.mu.Unlock()
}

// SetTargetGUID writes the static current-target GUID.
func (h *Host) SetTargetGUID(guid uint64) {
	h.mu.Lock()
	h.mem[h.offs.TargetGUIDAddr] = guid
	h.mu.Unlock()
}

// SetComboPoints writes the static combo-point byte.
func (h *Host) SetComboPoints(b byte) {
	h.mu.Lock()
	h.mem[h.offs.ComboPointsAddr] = uint64(b)
	h.mu.Unlock()
}

// UnmapComboPoints removes the combo-point cell so reads fault, for
// exercising the memory-exception path.
func (h *Host) UnmapComboPoints() {
	h.mu.Lock()
	delete(h.mem, h.offs.ComboPointsAddr)
	h.mu.Unlock()
}

// Unmap removes an arbitrary cell, for hook-walk failure tests.
func (h *Host) Unmap(addr uint32) {
	h.mu.Lock()
	delete(h.mem, addr)
	h.mu.Unlock()
}

// SetLuaStateNull zeroes the state-pointer anchor, simulating a host whose
// scripting engine is gone.
func (h *Host) SetLuaStateNull() {
	h.mu.Lock()
	h.mem[h.offs.LuaStateAnchor] = 0
	h.mu.Unlock()
}

// RestoreLuaState re-anchors the scripting engine.
func (h *Host) RestoreLuaState() {
	h.mu.Lock()
	h.mem[h.offs.LuaStateAnchor] = luaStateAddr
	h.mu.Unlock()
}

// Close tears down the scripting engine.
func (h *Host) Close() {
	h.mu.Lock()
	state := h.state
	h.state = nil
	h.mu.Unlock()
	if state != nil {
		state.L.Close()
	}
}

// registerNatives installs the internal host C functions at the addresses
// the offsets table names.
func (h *Host) registerNatives() {
	h.natives[h.offs.NativeCastSpell] = func(args ...uint64) uint64 {
		call := CastCall{}
		if len(args) > 0 {
			call.SpellID = args[0]
		}
		if len(args) > 1 {
			call.Arg2 = args[1]
		}
		if len(args) > 2 {
			call.TargetGUID = args[2]
		}
		if len(args) > 3 {
			call.Arg4 = args[3]
		}
		h.mu.Lock()
		h.castCalls = append(h.castCalls, call)
		ret := uint64(h.castResult)
		h.mu.Unlock()
		return ret
	}

	h.natives[h.offs.FindObjectByGUID] = func(args ...uint64) uint64 {
		if len(args) < 1 {
			return 0
		}
		h.mu.Lock()
		addr := h.objects[args[0]]
		h.mu.Unlock()
		return uint64(addr)
	}

	h.natives[h.offs.HemisphereCheck] = func(args ...uint64) uint64 {
		if len(args) < 2 {
			return 0
		}
		h.mu.Lock()
		fn := h.hemiFn
		h.mu.Unlock()
		if fn(uint32(args[0]), uint32(args[1])) {
			return 1
		}
		return 0
	}

	h.luaNat[h.offs.NativeGetSpellInfo] = h.luaGetSpellInfo
}
