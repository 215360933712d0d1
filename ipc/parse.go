package ipc

import (
	"strconv"
	"strings"

	"github.com/nathoo/wowbridge/types"
)

// maxUnitID bounds the unit token of IS_IN_RANGE.
const maxUnitID = 32

// Parse turns one wire message into a Request. The grammar is ASCII,
// case-sensitive, with no whitespace trimming; anything malformed — bad
// numbers, missing fields, oversized unit ids — falls through to Unknown
// and the dispatcher answers with a protocol error.
func Parse(msg []byte) types.Request {
	// Responses carry a trailing NUL on the wire; tolerate one on
	// commands too.
	cmd := strings.TrimRight(string(msg), "\x00")

	switch cmd {
	case "ping":
		return types.Request{Kind: types.ReqPing}
	case "GET_TIME_MS":
		return types.Request{Kind: types.ReqGetTimeMs}
	case "GET_TARGET_GUID":
		return types.Request{Kind: types.ReqGetTargetGUID}
	case "GET_COMBO_POINTS":
		return types.Request{Kind: types.ReqGetComboPoints}
	}

	if code, ok := strings.CutPrefix(cmd, "EXEC_LUA:"); ok {
		return types.Request{Kind: types.ReqExecScript, Code: code}
	}
	if arg, ok := strings.CutPrefix(cmd, "GET_CD:"); ok {
		if id, ok := parseSpellID(arg); ok {
			return types.Request{Kind: types.ReqGetCooldown, SpellID: id}
		}
	}
	if arg, ok := strings.CutPrefix(cmd, "GET_SPELL_INFO:"); ok {
		if id, ok := parseSpellID(arg); ok {
			return types.Request{Kind: types.ReqGetSpellInfo, SpellID: id}
		}
	}
	if arg, ok := strings.CutPrefix(cmd, "CAST_SPELL:"); ok {
		idPart, guidPart, hasGUID := strings.Cut(arg, ",")
		if id, ok := parseSpellID(idPart); ok {
			req := types.Request{Kind: types.ReqCastSpell, SpellID: id}
			if !hasGUID {
				return req
			}
			if guid, err := strconv.ParseUint(guidPart, 0, 64); err == nil {
				req.TargetGUID = guid
				return req
			}
		}
	}
	if arg, ok := strings.CutPrefix(cmd, "IS_IN_RANGE:"); ok {
		idPart, unit, hasUnit := strings.Cut(arg, ",")
		if id, ok := parseSpellID(idPart); ok && hasUnit &&
			unit != "" && len(unit) <= maxUnitID {
			return types.Request{Kind: types.ReqIsInRange, SpellID: id, UnitID: unit}
		}
	}
	if arg, ok := strings.CutPrefix(cmd, "CHECK_BACKSTAB_POS:"); ok {
		if guid, ok := parseGUID(arg); ok {
			return types.Request{Kind: types.ReqIsBehindTarget, TargetGUID: guid}
		}
	}

	return types.Request{Kind: types.ReqUnknown, Code: cmd}
}

// parseSpellID accepts a non-negative decimal spell id.
func parseSpellID(s string) (int32, bool) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil || id < 0 {
		return 0, false
	}
	return int32(id), true
}

// parseGUID accepts 0x-prefixed or bare hex, and decimal.
func parseGUID(s string) (uint64, bool) {
	if guid, err := strconv.ParseUint(s, 0, 64); err == nil {
		return guid, true
	}
	if guid, err := strconv.ParseUint(s, 16, 64); err == nil {
		return guid, true
	}
	return 0, false
}
