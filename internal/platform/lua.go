package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// InjectPlatformTable sets a read-only global `platform` table describing info.
// It must run before any configuration code is loaded.
func InjectPlatformTable(L *lua.LState, info *Info) error {
	t := L.NewTable()

	L.SetField(t, "os", lua.LString(info.OS))
	L.SetField(t, "arch", lua.LString(info.Arch))
	L.SetField(t, "arch_raw", lua.LString(info.ArchRaw))
	L.SetField(t, "cpus", lua.LNumber(info.CPUs))

	L.SetField(t, "is_linux", lua.LBool(info.IsLinux()))
	L.SetField(t, "is_macos", lua.LBool(info.IsMacOS()))
	L.SetField(t, "is_amd64", lua.LBool(info.Arch == "amd64"))
	L.SetField(t, "is_arm64", lua.LBool(info.Arch == "arm64"))
	L.SetField(t, "is_apple_silicon", lua.LBool(info.IsAppleSilicon()))

	// distro and linux_family are nil unless a Linux distribution was detected
	if info.IsLinux() && info.Distro != "" {
		distro := L.NewTable()
		L.SetField(distro, "id", lua.LString(info.Distro))
		L.SetField(distro, "family", lua.LString(info.Family))
		L.SetField(distro, "version", lua.LString(info.Version))
		L.SetField(t, "distro", distro)
		L.SetField(t, "linux_family", lua.LString(info.Family))
	}

	// in_family("debian") is true on Debian-family hosts
	L.SetField(t, "in_family", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(info.InFamily(L.CheckString(1))))
		return 1
	}))

	// when(condition, value) returns value if condition is true, nil otherwise
	L.SetField(t, "when", L.NewFunction(func(L *lua.LState) int {
		if L.CheckBool(1) {
			L.Push(L.Get(2))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	L.SetGlobal("platform", readOnly(L, t, "platform"))
	return nil
}

// readOnly returns an empty proxy whose metatable forwards reads to table and
// rejects every write.
func readOnly(L *lua.LState, table *lua.LTable, name string) *lua.LTable {
	mt := L.NewTable()
	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s table is read-only and cannot be modified", name)
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
