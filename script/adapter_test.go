package script_test

import (
	"strings"
	"testing"

	"github.com/nathoo/wowbridge/host/sim"
	"github.com/nathoo/wowbridge/offsets"
	"github.com/nathoo/wowbridge/script"
)

func newAdapter(t *testing.T) (*sim.Host, *script.Adapter) {
	t.Helper()
	offs := offsets.Default()
	h := sim.New(offs)
	t.Cleanup(h.Close)
	return h, script.New(h, offs, h)
}

func TestExecBuffer_MultipleResults(t *testing.T) {
	_, a := newAdapter(t)

	got := a.ExecBuffer(`return 1,"two",true,nil`)
	want := "LUA_RESULT:1,two,true,nil"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExecBuffer_NoResults(t *testing.T) {
	_, a := newAdapter(t)

	if got := a.ExecBuffer("local x = 1"); got != "LUA_RESULT:" {
		t.Fatalf("empty result set should yield bare prefix, got %q", got)
	}
}

func TestExecBuffer_LoadFailure(t *testing.T) {
	_, a := newAdapter(t)

	got := a.ExecBuffer("return ((")
	if !strings.HasPrefix(got, "LUA_RESULT:ERROR:load failed:") {
		t.Fatalf("got %q, want load-failed error", got)
	}
	if strings.ContainsRune(got, '\n') {
		t.Fatalf("error must be a single line, got %q", got)
	}
}

func TestExecBuffer_PCallFailure(t *testing.T) {
	_, a := newAdapter(t)

	got := a.ExecBuffer(`error("boom")`)
	if !strings.HasPrefix(got, "LUA_RESULT:ERROR:pcall failed:") {
		t.Fatalf("got %q, want pcall-failed error", got)
	}
	if !strings.Contains(got, "boom") {
		t.Fatalf("error should carry the script message, got %q", got)
	}
}

func TestExecBuffer_NullState(t *testing.T) {
	h, a := newAdapter(t)
	h.SetLuaStateNull()

	if got := a.ExecBuffer("return 1"); got != "LUA_RESULT:ERROR:lua state is nil" {
		t.Fatalf("got %q", got)
	}
}

func TestExecuteSimple(t *testing.T) {
	_, a := newAdapter(t)

	a.ExecuteSimple("MARKER = 17", "test")
	vals, err := a.Eval("return MARKER")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(vals) != 1 || vals[0].Type != script.TypeNumber || vals[0].Num != 17 {
		t.Fatalf("marker not set: %+v", vals)
	}
}

func TestExecuteSimple_NullState(t *testing.T) {
	h, a := newAdapter(t)
	h.SetLuaStateNull()
	a.ExecuteSimple("MARKER = 17", "test") // must not panic
}

// Every script-executing path must leave the stack exactly as deep as it
// found it.
func TestStackNeutrality(t *testing.T) {
	h, a := newAdapter(t)
	h.SetSpell(100, sim.SpellDef{Name: "Test", Rank: "Rank 1", Icon: "icon"})

	chunks := []struct {
		name string
		run  func()
	}{
		{"success", func() { a.ExecBuffer(`return 1,2,3`) }},
		{"load failure", func() { a.ExecBuffer("return ((") }},
		{"pcall failure", func() { a.ExecBuffer(`error("x")`) }},
		{"eval success", func() { a.Eval("return 42") }},
		{"eval failure", func() { a.Eval("nonsense((") }},
		{"spell info known", func() { a.SpellInfoByID(100) }},
		{"spell info unknown", func() { a.SpellInfoByID(999) }},
	}

	s := a.State()
	if s == nil {
		t.Fatal("state should resolve")
	}
	for _, c := range chunks {
		before := s.GetTop()
		c.run()
		if after := s.GetTop(); after != before {
			t.Errorf("%s: stack depth %d before, %d after", c.name, before, after)
		}
	}
}

func TestEval_TypedResults(t *testing.T) {
	_, a := newAdapter(t)

	vals, err := a.Eval(`return 2.5, true, nil, "x"`)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(vals) != 4 {
		t.Fatalf("expected 4 values, got %d", len(vals))
	}
	if vals[0].Type != script.TypeNumber || vals[0].Num != 2.5 {
		t.Errorf("value 0: %+v", vals[0])
	}
	if vals[1].Type != script.TypeBoolean || !vals[1].Bool {
		t.Errorf("value 1: %+v", vals[1])
	}
	if vals[2].Type != script.TypeNil {
		t.Errorf("value 2: %+v", vals[2])
	}
	if vals[3].Type != script.TypeString || vals[3].Str != "x" {
		t.Errorf("value 3: %+v", vals[3])
	}
}

func TestEval_NullState(t *testing.T) {
	h, a := newAdapter(t)
	h.SetLuaStateNull()

	if _, err := a.Eval("return 1"); err != script.ErrNoState {
		t.Fatalf("expected ErrNoState, got %v", err)
	}
}

func TestSpellInfoByID_Known(t *testing.T) {
	h, a := newAdapter(t)
	h.SetSpell(1752, sim.SpellDef{
		Name: "Sinister Strike", Rank: "Rank 6", Icon: "Interface\\Icons\\SS",
		Cost: 45, PowerType: 3, CastTimeMs: 0, MinRange: 0, MaxRange: 5,
	})

	info, err := a.SpellInfoByID(1752)
	if err != nil {
		t.Fatalf("SpellInfoByID: %v", err)
	}
	if !info.Found() {
		t.Fatal("spell should be found")
	}
	if info.Name != "Sinister Strike" || info.Rank != "Rank 6" {
		t.Errorf("name/rank: %q / %q", info.Name, info.Rank)
	}
	if info.Cost != 45 || info.PowerType != 3 || info.MaxRange != 5 {
		t.Errorf("numeric fields: %+v", info)
	}
}

func TestSpellInfoByID_Unknown(t *testing.T) {
	_, a := newAdapter(t)

	info, err := a.SpellInfoByID(999)
	if err != nil {
		t.Fatalf("SpellInfoByID: %v", err)
	}
	if info.Found() {
		t.Fatal("unknown spell must not be found")
	}
	if info.Name != "N/A" || info.Cost != -1 || info.PowerType != -1 {
		t.Errorf("sentinels not preserved: %+v", info)
	}
}

func TestSpellInfoByID_NoMaxRange(t *testing.T) {
	h, a := newAdapter(t)
	h.SetSpell(5, sim.SpellDef{Name: "Short", Rank: "r", Icon: "i", MinRange: 1, NoMaxRange: true})

	info, err := a.SpellInfoByID(5)
	if err != nil {
		t.Fatalf("SpellInfoByID: %v", err)
	}
	if info.MinRange != 1 {
		t.Errorf("min range: %v", info.MinRange)
	}
	if info.MaxRange != -1 {
		t.Errorf("absent max range should keep sentinel, got %v", info.MaxRange)
	}
}

func TestSpellInfoByID_NullState(t *testing.T) {
	h, a := newAdapter(t)
	h.SetLuaStateNull()

	if _, err := a.SpellInfoByID(1); err != script.ErrNoState {
		t.Fatalf("expected ErrNoState, got %v", err)
	}
}
