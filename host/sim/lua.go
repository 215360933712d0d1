package sim

import (
	"bytes"
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/wowbridge/host"
	"github.com/nathoo/wowbridge/script"
)

// startLua boots the simulated host's embedded scripting engine and
// registers the script-level game API the bridge drives through pcall.
func (h *Host) startLua() {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// GetTime() → seconds, fractional.
	L.SetGlobal("GetTime", L.NewFunction(func(L *lua.LState) int {
		h.mu.Lock()
		fn := h.timeFn
		h.mu.Unlock()
		L.Push(lua.LNumber(fn()))
		return 1
	}))

	// GetSpellCooldown(id) → start, duration, enabled. Unset spells are
	// off cooldown.
	L.SetGlobal("GetSpellCooldown", L.NewFunction(func(L *lua.LState) int {
		id := int32(L.CheckInt(1))
		h.mu.Lock()
		cd, ok := h.cooldowns[id]
		h.mu.Unlock()
		if !ok {
			cd = Cooldown{Enabled: 1}
		}
		L.Push(lua.LNumber(cd.Start))
		L.Push(lua.LNumber(cd.Duration))
		L.Push(lua.LNumber(cd.Enabled))
		return 3
	}))

	// IsSpellInRange(name, unit) → 1, 0, or nil, per the configured
	// range function.
	L.SetGlobal("IsSpellInRange", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		unit := L.CheckString(2)
		h.mu.Lock()
		fn := h.rangeFn
		h.mu.Unlock()
		L.Push(fn(name, unit))
		return 1
	}))

	h.state = &simState{h: h, L: L}
}

// SetLuaGlobal overrides a script-level global, for tests that need the
// host API to misbehave.
func (h *Host) SetLuaGlobal(name string, fn lua.LGFunction) {
	h.mu.Lock()
	state := h.state
	h.mu.Unlock()
	if state != nil {
		state.L.SetGlobal(name, state.L.NewFunction(fn))
	}
}

// --- script.Engine ---

// Resolve maps the raw state pointer back to the live engine state. Only
// the pointer the anchor actually held is valid.
func (h *Host) Resolve(ptr uint32) script.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ptr != luaStateAddr || h.state == nil {
		return nil
	}
	return h.state
}

// Execute is the fire-and-forget script entry point.
func (h *Host) Execute(code, source string) {
	h.mu.Lock()
	state := h.state
	h.mu.Unlock()
	if state == nil {
		return
	}
	if err := state.L.DoString(code); err != nil {
		log.Warningf("execute %s failed: %v", source, err)
	}
}

// luaGetSpellInfo is the native spell-info C function: consumes the spell
// id argument already on the stack and appends the result tuple after it.
// Unknown spells push nothing.
func (h *Host) luaGetSpellInfo(s script.State) int {
	id := s.ToInteger(s.GetTop())
	h.mu.Lock()
	def, ok := h.spells[int32(id)]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	s.PushString(def.Name)
	s.PushString(def.Rank)
	s.PushString(def.Icon)
	s.PushNumber(def.Cost)
	s.PushBoolean(false) // funnel slot, unused by the bridge
	s.PushNumber(float64(def.PowerType))
	s.PushNumber(def.CastTimeMs)
	s.PushNumber(def.MinRange)
	if def.NoMaxRange {
		return 8
	}
	s.PushNumber(def.MaxRange)
	return 9
}

// simState adapts a gopher-lua state to the script.State stack contract.
type simState struct {
	h *Host
	L *lua.LState
}

func (s *simState) GetTop() int    { return s.L.GetTop() }
func (s *simState) SetTop(top int) { s.L.SetTop(top) }

func (s *simState) LoadBuffer(chunk []byte, name string) error {
	fn, err := s.L.Load(bytes.NewReader(chunk), name)
	if err != nil {
		return err
	}
	s.L.Push(fn)
	return nil
}

func (s *simState) PCall(nargs, nresults int) error {
	return s.L.PCall(nargs, nresults, nil)
}

func (s *simState) ToString(idx int) (string, bool) {
	switch v := s.L.Get(idx).(type) {
	case lua.LString:
		return string(v), true
	case lua.LNumber:
		return v.String(), true
	default:
		return "", false
	}
}

func (s *simState) ToNumber(idx int) float64 {
	switch v := s.L.Get(idx).(type) {
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func (s *simState) ToInteger(idx int) int {
	return int(s.ToNumber(idx))
}

func (s *simState) ToBoolean(idx int) bool {
	return !lua.LVIsFalse(s.L.Get(idx))
}

func (s *simState) IsNumber(idx int) bool {
	switch v := s.L.Get(idx).(type) {
	case lua.LNumber:
		return true
	case lua.LString:
		_, err := strconv.ParseFloat(string(v), 64)
		return err == nil
	default:
		return false
	}
}

func (s *simState) IsString(idx int) bool {
	switch s.L.Get(idx).(type) {
	case lua.LString, lua.LNumber:
		return true
	default:
		return false
	}
}

func (s *simState) TypeOf(idx int) script.Type {
	switch s.L.Get(idx).Type() {
	case lua.LTNil:
		return script.TypeNil
	case lua.LTBool:
		return script.TypeBoolean
	case lua.LTNumber:
		return script.TypeNumber
	case lua.LTString:
		return script.TypeString
	case lua.LTTable:
		return script.TypeTable
	case lua.LTFunction:
		return script.TypeFunction
	case lua.LTUserData:
		return script.TypeUserData
	case lua.LTThread:
		return script.TypeThread
	default:
		return script.TypeNone
	}
}

func (s *simState) PushInteger(n int)     { s.L.Push(lua.LNumber(n)) }
func (s *simState) PushNumber(f float64)  { s.L.Push(lua.LNumber(f)) }
func (s *simState) PushString(str string) { s.L.Push(lua.LString(str)) }
func (s *simState) PushBoolean(b bool)    { s.L.Push(lua.LBool(b)) }
func (s *simState) PushNil()              { s.L.Push(lua.LNil) }

func (s *simState) GetField(idx int, name string) {
	s.L.Push(s.L.GetField(s.L.Get(idx), name))
}

func (s *simState) CallNative(addr uint32) error {
	s.h.mu.Lock()
	fn, ok := s.h.luaNat[addr]
	s.h.mu.Unlock()
	if !ok {
		return host.ErrBadCall
	}
	fn(s)
	return nil
}
