package script

import (
	"errors"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/nathoo/wowbridge/host"
	"github.com/nathoo/wowbridge/offsets"
	"github.com/nathoo/wowbridge/types"
)

var log = commonlog.GetLogger("wowbridge.script")

// chunkName is the source name attached to every chunk the bridge loads,
// so host-side error messages identify us.
const chunkName = "=wowbridge"

// ErrNoState is returned when the state-pointer anchor reads zero or the
// pointer no longer resolves to a live engine state.
var ErrNoState = errors.New("lua state is nil")

// Adapter is the scripting-engine adapter. It owns no threads and caches
// no state pointer: every entry point re-reads the anchor, does its work
// with the stack fully restored on exit, and never lets a host panic
// escape.
type Adapter struct {
	proc host.Process
	offs *offsets.Table
	eng  Engine
}

// New builds the adapter. The engine is the host-specific shim that turns
// the raw state pointer into a State.
func New(proc host.Process, offs *offsets.Table, eng Engine) *Adapter {
	return &Adapter{proc: proc, offs: offs, eng: eng}
}

// State reads the state pointer at its anchor and resolves it. Returns
// nil when the anchor holds zero, the read faults, or the pointer is
// stale. The result is never cached across requests.
func (a *Adapter) State() State {
	ptr, err := a.proc.ReadPtr(a.offs.LuaStateAnchor)
	if err != nil || ptr == 0 {
		return nil
	}
	return a.eng.Resolve(ptr)
}

// ExecuteSimple fires script text through the host's execute entry point.
// No return value is available; intended for fire-and-forget work.
func (a *Adapter) ExecuteSimple(code, source string) {
	if a.State() == nil {
		log.Warning("ExecuteSimple skipped: lua state is nil")
		return
	}
	a.eng.Execute(code, source)
}

// ExecBuffer loads and pcalls a chunk and renders every result into the
// LUA_RESULT wire contract:
//
//	LUA_RESULT:<v1>,<v2>,...       on success (just the prefix when empty)
//	LUA_RESULT:ERROR:load failed:<msg>
//	LUA_RESULT:ERROR:pcall failed:<msg>
//	LUA_RESULT:ERROR:crash         when the host call panics
//
// The stack is restored to its pre-call depth on every exit path.
func (a *Adapter) ExecBuffer(code string) (out string) {
	s := a.State()
	if s == nil {
		return "LUA_RESULT:ERROR:" + ErrNoState.Error()
	}

	top := s.GetTop()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic during script execution: %v", r)
			s.SetTop(0)
			out = "LUA_RESULT:ERROR:crash"
		}
	}()

	if err := s.LoadBuffer([]byte(code), chunkName); err != nil {
		s.SetTop(top)
		return "LUA_RESULT:ERROR:load failed:" + firstLine(err)
	}
	if err := s.PCall(0, MultRet); err != nil {
		s.SetTop(top)
		return "LUA_RESULT:ERROR:pcall failed:" + firstLine(err)
	}

	n := s.GetTop() - top
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, coerce(s, top+i))
	}
	s.SetTop(top)
	return "LUA_RESULT:" + strings.Join(parts, ",")
}

// Eval loads and pcalls a chunk and returns the results as typed values,
// for command handlers that must inspect types rather than ship strings.
// The stack is restored on every exit path.
func (a *Adapter) Eval(code string) (vals []Value, err error) {
	s := a.State()
	if s == nil {
		return nil, ErrNoState
	}

	top := s.GetTop()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic during script eval: %v", r)
			s.SetTop(0)
			vals, err = nil, errors.New("crash")
		}
	}()

	if lerr := s.LoadBuffer([]byte(code), chunkName); lerr != nil {
		s.SetTop(top)
		return nil, errors.New("load failed:" + firstLine(lerr))
	}
	if perr := s.PCall(0, MultRet); perr != nil {
		s.SetTop(top)
		return nil, errors.New("pcall failed:" + firstLine(perr))
	}

	n := s.GetTop() - top
	vals = make([]Value, 0, n)
	for i := 1; i <= n; i++ {
		idx := top + i
		v := Value{Type: s.TypeOf(idx)}
		switch v.Type {
		case TypeNumber:
			v.Num = s.ToNumber(idx)
		case TypeBoolean:
			v.Bool = s.ToBoolean(idx)
		case TypeString:
			v.Str, _ = s.ToString(idx)
		}
		vals = append(vals, v)
	}
	s.SetTop(top)
	return vals, nil
}

// SpellInfoByID pushes the spell id and calls the host's native spell-info
// function directly, reading a variable result count back off the stack.
// Result layout relative to the pre-push depth: name +2, rank +3, icon +4,
// cost +5, power type +7, cast time ms +8, min range +9 and, when the host
// supplies it, max range +10. Missing or wrong-typed slots keep their
// sentinels.
func (a *Adapter) SpellInfoByID(id int32) (info types.SpellInfo, err error) {
	info = types.SpellInfo{
		Name: "N/A", Rank: "N/A", Icon: "N/A",
		Cost: -1, PowerType: -1, CastTimeMs: -1, MinRange: -1, MaxRange: -1,
	}

	s := a.State()
	if s == nil {
		return info, ErrNoState
	}

	top := s.GetTop()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic during native spell-info call: %v", r)
			s.SetTop(0)
			err = errors.New("crash")
		}
	}()
	defer s.SetTop(top)

	s.PushInteger(int(id))
	if cerr := s.CallNative(a.offs.NativeGetSpellInfo); cerr != nil {
		return info, cerr
	}

	n := s.GetTop() - top
	at := func(off int) int { return top + off }

	if n >= 2 {
		if str, ok := s.ToString(at(2)); ok {
			info.Name = str
		}
	}
	if n >= 3 {
		if str, ok := s.ToString(at(3)); ok {
			info.Rank = str
		}
	}
	if n >= 4 {
		if str, ok := s.ToString(at(4)); ok {
			info.Icon = str
		}
	}
	if n >= 5 && s.IsNumber(at(5)) {
		info.Cost = s.ToNumber(at(5))
	}
	if n >= 7 && s.IsNumber(at(7)) {
		info.PowerType = s.ToInteger(at(7))
	}
	if n >= 8 && s.IsNumber(at(8)) {
		info.CastTimeMs = s.ToNumber(at(8))
	}
	if n >= 9 && s.IsNumber(at(9)) {
		info.MinRange = s.ToNumber(at(9))
	}
	if n >= 10 && s.IsNumber(at(10)) {
		info.MaxRange = s.ToNumber(at(10))
	}
	return info, nil
}

// coerce renders one stack slot the way the wire protocol expects:
// engine string coercion for strings and numbers, true/false for
// booleans, nil for everything else.
func coerce(s State, idx int) string {
	if str, ok := s.ToString(idx); ok {
		return str
	}
	if s.TypeOf(idx) == TypeBoolean {
		if s.ToBoolean(idx) {
			return "true"
		}
		return "false"
	}
	return "nil"
}

// firstLine trims a script error to its first line; engine errors carry
// multi-line tracebacks that must not cross the wire.
func firstLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}
