package config

import (
	lua "github.com/yuin/gopher-lua"
)

// blockedGlobals are removed from every config VM:
// os and io reach the machine, the loaders pull in external code, debug and
// the raw* / metatable functions can bypass the read-only platform table.
var blockedGlobals = []string{
	"os",
	"io",
	"require",
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"module",
	"debug",
	"rawget",
	"rawset",
	"rawequal",
	"getmetatable",
	"setmetatable",
	"getfenv",
	"setfenv",
	"collectgarbage",
}

// sandboxLuaVM restricts L to the string, table and math libraries plus the
// pure base functions (type, tostring, tonumber, pairs, ipairs, ...).
func sandboxLuaVM(L *lua.LState) {
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}

// newSandboxedVM creates a new Lua VM with sandboxing applied.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}
