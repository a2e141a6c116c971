package config

import (
	lua "github.com/yuin/gopher-lua"
)

// openLibs are the only Lua libraries a settings file can use. os, io,
// debug, package and coroutine are never opened.
var openLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// blockedBaseFuncs load or run code from outside the settings file.
var blockedBaseFuncs = []string{"dofile", "loadfile", "load", "loadstring", "require", "module"}

// newSandboxedVM returns a Lua state that can evaluate declarative settings
// but cannot run commands, touch the filesystem or load other code.
func newSandboxedVM() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range openLibs {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range blockedBaseFuncs {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
