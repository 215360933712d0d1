// Package types defines the shared data structures for the wowbridge core.
// This package contains only type definitions — no logic, no methods beyond
// trivial accessors.
package types

// RequestKind discriminates the commands the controller can send.
type RequestKind int

const (
	ReqUnknown RequestKind = iota
	ReqPing
	ReqExecScript
	ReqGetTimeMs
	ReqGetCooldown
	ReqIsInRange
	ReqGetSpellInfo
	ReqCastSpell
	ReqGetTargetGUID
	ReqGetComboPoints
	ReqIsBehindTarget
)

// String returns the wire-level command name for logging.
func (k RequestKind) String() string {
	switch k {
	case ReqPing:
		return "ping"
	case ReqExecScript:
		return "EXEC_LUA"
	case ReqGetTimeMs:
		return "GET_TIME_MS"
	case ReqGetCooldown:
		return "GET_CD"
	case ReqIsInRange:
		return "IS_IN_RANGE"
	case ReqGetSpellInfo:
		return "GET_SPELL_INFO"
	case ReqCastSpell:
		return "CAST_SPELL"
	case ReqGetTargetGUID:
		return "GET_TARGET_GUID"
	case ReqGetComboPoints:
		return "GET_COMBO_POINTS"
	case ReqIsBehindTarget:
		return "CHECK_BACKSTAB_POS"
	default:
		return "UNKNOWN"
	}
}

// Request is one parsed controller command. Exactly one variant is active,
// selected by Kind; the payload fields used by that variant are set and the
// rest are zero.
type Request struct {
	Kind       RequestKind
	Code       string // ExecScript chunk, or the raw text of an Unknown command
	SpellID    int32  // GetCooldown, IsInRange, GetSpellInfo, CastSpell
	UnitID     string // IsInRange
	TargetGUID uint64 // CastSpell (0 = no explicit target), IsBehindTarget
}

// SpellInfo is the structured result of the host's native GetSpellInfo
// call. Fields the host did not return keep their sentinel values:
// "N/A" for strings, -1 for numbers.
type SpellInfo struct {
	Name       string
	Rank       string
	Icon       string
	Cost       float64
	PowerType  int
	CastTimeMs float64
	MinRange   float64
	MaxRange   float64
}

// Found reports whether the host actually knew the spell (the name slot
// came back as a string).
func (si SpellInfo) Found() bool {
	return si.Name != "N/A"
}
