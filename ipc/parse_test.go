package ipc

import (
	"strings"
	"testing"

	"github.com/nathoo/wowbridge/types"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want types.Request
	}{
		{"ping", "ping", types.Request{Kind: types.ReqPing}},
		{"ping with trailing nul", "ping\x00", types.Request{Kind: types.ReqPing}},
		{"get time", "GET_TIME_MS", types.Request{Kind: types.ReqGetTimeMs}},
		{"get target guid", "GET_TARGET_GUID", types.Request{Kind: types.ReqGetTargetGUID}},
		{"get combo points", "GET_COMBO_POINTS", types.Request{Kind: types.ReqGetComboPoints}},

		{"exec", "EXEC_LUA:print(1)",
			types.Request{Kind: types.ReqExecScript, Code: "print(1)"}},
		{"exec empty code", "EXEC_LUA:",
			types.Request{Kind: types.ReqExecScript, Code: ""}},
		{"exec code with colons", "EXEC_LUA:a = {x=1}; return a.x",
			types.Request{Kind: types.ReqExecScript, Code: "a = {x=1}; return a.x"}},

		{"cooldown", "GET_CD:768",
			types.Request{Kind: types.ReqGetCooldown, SpellID: 768}},
		{"spell info", "GET_SPELL_INFO:1752",
			types.Request{Kind: types.ReqGetSpellInfo, SpellID: 1752}},

		{"cast without target", "CAST_SPELL:2098",
			types.Request{Kind: types.ReqCastSpell, SpellID: 2098}},
		{"cast with decimal guid", "CAST_SPELL:2098,12345",
			types.Request{Kind: types.ReqCastSpell, SpellID: 2098, TargetGUID: 12345}},
		{"cast with hex guid", "CAST_SPELL:2098,0x00000000ABCDEF01",
			types.Request{Kind: types.ReqCastSpell, SpellID: 2098, TargetGUID: 0xABCDEF01}},

		{"range", "IS_IN_RANGE:1752,target",
			types.Request{Kind: types.ReqIsInRange, SpellID: 1752, UnitID: "target"}},
		{"range max-length unit", "IS_IN_RANGE:1,s" + strings.Repeat("x", 31),
			types.Request{Kind: types.ReqIsInRange, SpellID: 1, UnitID: "s" + strings.Repeat("x", 31)}},

		{"behind hex guid", "CHECK_BACKSTAB_POS:0xF130001234",
			types.Request{Kind: types.ReqIsBehindTarget, TargetGUID: 0xF130001234}},
		{"behind bare hex guid", "CHECK_BACKSTAB_POS:F130001234",
			types.Request{Kind: types.ReqIsBehindTarget, TargetGUID: 0xF130001234}},
		{"behind decimal guid", "CHECK_BACKSTAB_POS:42",
			types.Request{Kind: types.ReqIsBehindTarget, TargetGUID: 42}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Parse([]byte(c.msg)); got != c.want {
				t.Errorf("Parse(%q) = %+v, want %+v", c.msg, got, c.want)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := []string{
		"",
		"PING",  // commands are case-sensitive
		"ping ", // no whitespace trimming
		" GET_TIME_MS",
		"GET_CD:",
		"GET_CD:abc",
		"GET_CD:-5",
		"GET_CD:99999999999", // overflows int32
		"GET_SPELL_INFO:1.5",
		"CAST_SPELL:",
		"CAST_SPELL:x,1",
		"CAST_SPELL:1,zzz",
		"IS_IN_RANGE:1752",  // unit missing
		"IS_IN_RANGE:1752,", // unit empty
		"IS_IN_RANGE:1," + strings.Repeat("x", 33), // unit too long
		"IS_IN_RANGE:abc,target",
		"CHECK_BACKSTAB_POS:",
		"CHECK_BACKSTAB_POS:not-a-guid",
		"FROBNICATE:1",
		"\x00\x01\x02\xff",
		strings.Repeat("A", 4096),
	}
	for _, msg := range cases {
		got := Parse([]byte(msg))
		if got.Kind != types.ReqUnknown {
			t.Errorf("Parse(%q).Kind = %v, want ReqUnknown", msg, got.Kind)
		}
	}
}

// The raw command is preserved on unknown requests so the dispatcher can
// log what it refused.
func TestParse_UnknownKeepsCommand(t *testing.T) {
	got := Parse([]byte("FROBNICATE:1\x00"))
	if got.Kind != types.ReqUnknown || got.Code != "FROBNICATE:1" {
		t.Fatalf("got %+v", got)
	}
}
