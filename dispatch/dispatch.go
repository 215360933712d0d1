// Package dispatch maps one parsed controller request onto the host and
// renders the tagged response string. Dispatch is synchronous and must run
// on the render thread; it is stateless and reentrant only within that
// thread.
package dispatch

import (
	"fmt"
	"math"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/nathoo/wowbridge/host"
	"github.com/nathoo/wowbridge/offsets"
	"github.com/nathoo/wowbridge/script"
	"github.com/nathoo/wowbridge/types"
)

var log = commonlog.GetLogger("wowbridge.dispatch")

// Dispatcher holds the collaborators a dispatch may touch: the scripting
// adapter, raw memory, and the internal host functions named by the
// offsets table.
type Dispatcher struct {
	proc host.Process
	offs *offsets.Table
	lua  *script.Adapter
}

// New builds a dispatcher.
func New(proc host.Process, offs *offsets.Table, lua *script.Adapter) *Dispatcher {
	return &Dispatcher{proc: proc, offs: offs, lua: lua}
}

// Dispatch executes one request to completion and always returns a tagged
// response. No panic escapes: a crash anywhere below resets the scripting
// stack and reports a variant-specific crash tag.
func (d *Dispatcher) Dispatch(req types.Request) (resp string) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic dispatching %s: %v", req.Kind, r)
			if s := d.lua.State(); s != nil {
				s.SetTop(0)
			}
			resp = crashTag(req.Kind)
		}
	}()

	switch req.Kind {
	case types.ReqPing:
		return "PONG"
	case types.ReqExecScript:
		return d.lua.ExecBuffer(req.Code)
	case types.ReqGetTimeMs:
		return d.getTimeMs()
	case types.ReqGetCooldown:
		return d.getCooldown(req.SpellID)
	case types.ReqIsInRange:
		return d.isInRange(req.SpellID, req.UnitID)
	case types.ReqGetSpellInfo:
		return d.getSpellInfo(req.SpellID)
	case types.ReqCastSpell:
		return d.castSpell(req.SpellID, req.TargetGUID)
	case types.ReqGetTargetGUID:
		return d.getTargetGUID()
	case types.ReqGetComboPoints:
		return d.getComboPoints()
	case types.ReqIsBehindTarget:
		return d.isBehindTarget(req.TargetGUID)
	default:
		return "ERROR:Unknown request"
	}
}

func (d *Dispatcher) getTimeMs() string {
	vals, err := d.lua.Eval("return GetTime()")
	if err != nil {
		return "ERROR:" + err.Error()
	}
	if len(vals) < 1 || vals[0].Type != script.TypeNumber {
		return "ERROR:GetTime result not a number"
	}
	return fmt.Sprintf("TIME:%d", int64(math.Round(vals[0].Num*1000)))
}

func (d *Dispatcher) getCooldown(spellID int32) string {
	if d.lua.State() == nil {
		return "CD_ERR:" + script.ErrNoState.Error()
	}
	vals, err := d.lua.Eval(fmt.Sprintf("return GetSpellCooldown(%d)", spellID))
	if err != nil {
		return "CD_ERR:" + err.Error()
	}
	if len(vals) < 3 ||
		vals[0].Type != script.TypeNumber ||
		vals[1].Type != script.TypeNumber ||
		vals[2].Type != script.TypeNumber {
		return "ERROR:GetSpellCooldown result types invalid"
	}
	startMs := int64(math.Round(vals[0].Num * 1000))
	durationMs := int64(math.Round(vals[1].Num * 1000))
	enabled := 0
	if vals[2].Num != 0 {
		enabled = 1
	}
	return fmt.Sprintf("CD:%d,%d,%d", startMs, durationMs, enabled)
}

func (d *Dispatcher) isInRange(spellID int32, unitID string) string {
	if d.lua.State() == nil {
		return "RANGE_ERR:" + script.ErrNoState.Error()
	}
	info, err := d.lua.SpellInfoByID(spellID)
	if err != nil || !info.Found() {
		return "RANGE_ERR:GetSpellInfo failed"
	}

	code := fmt.Sprintf("return IsSpellInRange(\"%s\", \"%s\")",
		luaEscape(info.Name), luaEscape(unitID))
	vals, err := d.lua.Eval(code)
	if err != nil {
		return "RANGE_ERR:" + err.Error()
	}

	// number → integer; boolean → 0/1; nil → 0 (not in range / unknown);
	// anything else → -1.
	result := -1
	switch {
	case len(vals) == 0 || vals[0].Type == script.TypeNil:
		result = 0
	case vals[0].Type == script.TypeNumber:
		result = int(vals[0].Num)
	case vals[0].Type == script.TypeBoolean:
		result = 0
		if vals[0].Bool {
			result = 1
		}
	}
	return fmt.Sprintf("IN_RANGE:%d", result)
}

// getSpellInfo renders the native spell-info tuple. Fields are separated
// by '|' rather than ',' because spell names may contain commas; the
// controller parses on '|' for this response only.
func (d *Dispatcher) getSpellInfo(spellID int32) string {
	if d.lua.State() == nil {
		return "SPELLINFO_ERR:" + script.ErrNoState.Error()
	}
	info, err := d.lua.SpellInfoByID(spellID)
	if err != nil {
		return "SPELLINFO_ERR:" + err.Error()
	}
	return fmt.Sprintf("SPELLINFO:%s|%s|%.0f|%.1f|%.1f|%s|%.0f|%d",
		info.Name, info.Rank, info.CastTimeMs, info.MinRange, info.MaxRange,
		info.Icon, info.Cost, info.PowerType)
}

func (d *Dispatcher) castSpell(spellID int32, targetGUID uint64) string {
	addr := d.offs.NativeCastSpell
	if addr == 0 {
		return "CAST_RESULT:ERROR:func null"
	}
	// CastLocalPlayerSpell(spellId, 0, targetGuid, 0); the second and
	// fourth arguments are unknowns the host expects zeroed.
	ret, err := d.proc.Call(addr, uint64(uint32(spellID)), 0, targetGUID, 0)
	if err != nil {
		log.Errorf("native cast failed: %v", err)
		return "CAST_RESULT:ERROR:crash"
	}
	return fmt.Sprintf("CAST_RESULT:%d,%d", spellID, byte(ret))
}

func (d *Dispatcher) getTargetGUID() string {
	guid, err := d.proc.ReadU64(d.offs.TargetGUIDAddr)
	if err != nil {
		return "ERROR:target guid read fail"
	}
	return fmt.Sprintf("TARGET_GUID:0x%X", guid)
}

func (d *Dispatcher) getComboPoints() string {
	cp, err := d.proc.ReadU8(d.offs.ComboPointsAddr)
	if err != nil {
		return "CP:-99"
	}
	if cp > 5 {
		// A stale pointer reads garbage here; clamp rather than report
		// an impossible count.
		log.Warningf("combo point byte %d out of range, clamping to 0", cp)
		cp = 0
	}
	return fmt.Sprintf("CP:%d", cp)
}

func (d *Dispatcher) isBehindTarget(targetGUID uint64) string {
	cc, err := d.proc.ReadPtr(d.offs.ClientConnection)
	if err != nil || cc == 0 {
		return "[ERROR:CC null]"
	}
	om, err := d.proc.ReadPtr(cc + d.offs.ObjectManagerOffset)
	if err != nil || om == 0 {
		return "[ERROR:OM null]"
	}
	playerGUID, err := d.proc.ReadU64(om + d.offs.LocalGUIDOffset)
	if err != nil || playerGUID == 0 {
		return "[ERROR:PlayerGUID 0]"
	}

	player, err := d.proc.Call(d.offs.FindObjectByGUID, playerGUID, 1)
	if err != nil {
		return "[ERROR:AV checking position]"
	}
	if player == 0 {
		return "[ERROR:PlayerLookup fail]"
	}
	if targetGUID == 0 {
		return "[ERROR:TargetGUID 0]"
	}
	target, err := d.proc.Call(d.offs.FindObjectByGUID, targetGUID, 1)
	if err != nil {
		return "[ERROR:AV checking position]"
	}
	if target == 0 {
		return "[ERROR:TargetLookup fail]"
	}

	// Behind means: the player is NOT in the target's front hemisphere,
	// and the target IS in the player's front hemisphere.
	playerInFrontOfTarget, err := d.proc.Call(d.offs.HemisphereCheck, target, player)
	if err != nil {
		return "[ERROR:AV checking position]"
	}
	targetInFrontOfPlayer, err := d.proc.Call(d.offs.HemisphereCheck, player, target)
	if err != nil {
		return "[ERROR:AV checking position]"
	}

	behind := 0
	if playerInFrontOfTarget == 0 && targetInFrontOfPlayer != 0 {
		behind = 1
	}
	return fmt.Sprintf("[IS_BEHIND_TARGET_OK:%d]", behind)
}

// crashTag picks the variant-specific tag for a recovered dispatch panic.
func crashTag(kind types.RequestKind) string {
	switch kind {
	case types.ReqExecScript, types.ReqGetTimeMs:
		return "LUA_RESULT:ERROR:crash"
	case types.ReqGetCooldown:
		return "CD_ERR:crash"
	case types.ReqIsInRange:
		return "RANGE_ERR:crash"
	case types.ReqGetSpellInfo:
		return "SPELLINFO_ERR:crash"
	case types.ReqCastSpell:
		return "CAST_RESULT:ERROR:crash"
	case types.ReqIsBehindTarget:
		return "[ERROR:AV checking position]"
	default:
		return "ERROR:crash"
	}
}

// luaEscape quotes backslashes and double quotes so a value can sit
// inside a double-quoted script string literal.
func luaEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
