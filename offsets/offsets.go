// Package offsets holds the symbolic-name-to-address book that retargets
// the bridge to a specific host build. The addresses are the interop ABI
// to a closed binary: the constructor checks none of them, it only records
// that a table was loaded so the other components can assert readiness.
package offsets

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Table maps every address the bridge core needs. All values are absolute
// addresses (or struct-relative offsets where named *Offset / *Slot) in the
// 32-bit host image.
type Table struct {
	// Scripting engine entry points.
	LuaStateAnchor uint32 `toml:"lua_state_anchor"`
	LuaExecute     uint32 `toml:"lua_execute"`
	LuaPCall       uint32 `toml:"lua_pcall"`
	LuaLoadBuffer  uint32 `toml:"lua_loadbuffer"`
	LuaGetTop      uint32 `toml:"lua_gettop"`
	LuaSetTop      uint32 `toml:"lua_settop"`
	LuaToNumber    uint32 `toml:"lua_tonumber"`
	LuaToInteger   uint32 `toml:"lua_tointeger"`
	LuaToBoolean   uint32 `toml:"lua_toboolean"`
	LuaToLString   uint32 `toml:"lua_tolstring"`
	LuaIsNumber    uint32 `toml:"lua_isnumber"`
	LuaIsString    uint32 `toml:"lua_isstring"`
	LuaType        uint32 `toml:"lua_type"`
	LuaPushInteger uint32 `toml:"lua_pushinteger"`
	LuaPushString  uint32 `toml:"lua_pushstring"`
	LuaPushNil     uint32 `toml:"lua_pushnil"`
	LuaGetField    uint32 `toml:"lua_getfield"`

	// Internal host C functions.
	NativeGetSpellInfo uint32 `toml:"native_get_spell_info"`
	NativeCastSpell    uint32 `toml:"native_cast_spell"`
	FindObjectByGUID   uint32 `toml:"find_object_by_guid"`
	HemisphereCheck    uint32 `toml:"hemisphere_check"`

	// Static data anchors.
	ClientConnection    uint32 `toml:"client_connection"`
	ObjectManagerOffset uint32 `toml:"object_manager_offset"`
	LocalGUIDOffset     uint32 `toml:"local_guid_offset"`
	ComboPointsAddr     uint32 `toml:"combo_points_addr"`
	TargetGUIDAddr      uint32 `toml:"target_guid_addr"`

	// Present-hook walk: *D3DPtr1 → +D3DPtr2 → vtable → +EndSceneSlot.
	D3DPtr1      uint32 `toml:"d3d_ptr_1"`
	D3DPtr2      uint32 `toml:"d3d_ptr_2"`
	EndSceneSlot uint32 `toml:"end_scene_slot"`

	initialized bool
}

// Default returns the compiled-in table for the 3.3.5a (12340) host build.
func Default() *Table {
	return &Table{
		LuaStateAnchor: 0x00D3F78C,
		LuaExecute:     0x00819210,
		LuaPCall:       0x0084EC50,
		LuaLoadBuffer:  0x0084F860,
		LuaGetTop:      0x0084DBD0,
		LuaSetTop:      0x0084DBF0,
		LuaToNumber:    0x0084E030,
		LuaToInteger:   0x0084E070,
		LuaToBoolean:   0x0084E0B0,
		LuaToLString:   0x0084E0E0,
		LuaIsNumber:    0x0084DF20,
		LuaIsString:    0x0084DF60,
		LuaType:        0x0084DEB0,
		LuaPushInteger: 0x0084E2D0,
		LuaPushString:  0x0084E350,
		LuaPushNil:     0x0084E280,
		LuaGetField:    0x0084E590,

		NativeGetSpellInfo: 0x00540A30,
		NativeCastSpell:    0x0080DA40,
		FindObjectByGUID:   0x004D4DB0,
		HemisphereCheck:    0x0071BC50,

		ClientConnection:    0x00C79CE0,
		ObjectManagerOffset: 0x2ED0,
		LocalGUIDOffset:     0xC0,
		ComboPointsAddr:     0x00BD084D,
		TargetGUIDAddr:      0x00BD07A0,

		D3DPtr1:      0x00C5DF88,
		D3DPtr2:      0x397C,
		EndSceneSlot: 0xA8,

		initialized: true,
	}
}

// Load reads a retarget file and overlays it on the compiled-in defaults.
// Only keys present in the file are replaced, so a file may retarget a
// single moved address.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading offsets file %s: %w", path, err)
	}
	t := Default()
	if err := toml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parsing offsets file %s: %w", path, err)
	}
	t.initialized = true
	return t, nil
}

// Ready reports whether the table was produced by Default or Load. A zero
// Table is not usable; components assert this before touching addresses.
func (t *Table) Ready() bool {
	return t != nil && t.initialized
}
