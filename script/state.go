// Package script wraps the host's embedded scripting C API behind a
// type-safe adapter. Raw pointer values never leak past this boundary:
// callers see load/pcall/stack operations and tagged result strings.
package script

// MultRet asks PCall for every result the chunk produced.
const MultRet = -1

// Type mirrors the script engine's value-type tags.
type Type int

const (
	TypeNone          Type = -1
	TypeNil           Type = 0
	TypeBoolean       Type = 1
	TypeLightUserData Type = 2
	TypeNumber        Type = 3
	TypeString        Type = 4
	TypeTable         Type = 5
	TypeFunction      Type = 6
	TypeUserData      Type = 7
	TypeThread        Type = 8
)

// State is one live scripting stack, the moral equivalent of the host's
// lua_State seen through its C API entry points. All methods must be
// called on the render thread. Indices are absolute stack slots.
type State interface {
	GetTop() int
	SetTop(top int)

	// LoadBuffer compiles chunk and pushes it as a function, ready for
	// PCall. On error nothing is left on the stack.
	LoadBuffer(chunk []byte, name string) error

	// PCall pops the function and nargs arguments and runs the function
	// in protected mode, leaving nresults (or everything, for MultRet)
	// on the stack. Script-level errors come back as a Go error.
	PCall(nargs, nresults int) error

	// ToString applies the engine's string coercion: strings come back
	// verbatim, numbers are formatted; everything else reports false.
	ToString(idx int) (string, bool)
	ToNumber(idx int) float64
	ToInteger(idx int) int
	ToBoolean(idx int) bool
	IsNumber(idx int) bool
	IsString(idx int) bool
	TypeOf(idx int) Type

	PushInteger(n int)
	PushNumber(f float64)
	PushString(s string)
	PushBoolean(b bool)
	PushNil()

	// GetField pushes obj[name] where obj is the value at idx.
	GetField(idx int, name string)

	// CallNative invokes the host C function registered at addr against
	// this stack: it consumes stack arguments and pushes its results.
	CallNative(addr uint32) error
}

// Engine resolves the raw state pointer read from the anchor address into
// a live State, and carries the fire-and-forget execute entry point that
// does not go through a state handle at all.
type Engine interface {
	// Resolve maps the pointer to a State, or nil if the pointer is
	// stale or the engine is gone.
	Resolve(ptr uint32) State

	// Execute runs script text with a source name attached. No results
	// are observable through this entry point.
	Execute(code, source string)
}

// Value is one pcall result kept in its script-level type, for callers
// that need to distinguish numbers from booleans from nil.
type Value struct {
	Type Type
	Num  float64
	Str  string
	Bool bool
}
