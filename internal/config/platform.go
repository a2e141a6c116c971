package config

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
	lua "github.com/yuin/gopher-lua"
)

// Platform describes the machine evaluating the settings file, so one file
// can be shared between hosts with different drive mount points.
type Platform struct {
	OS       string // "linux", "darwin", "windows"
	Arch     string // runtime.GOARCH
	Hostname string
	Distro   string // e.g. "linuxmint", empty when unknown
}

// PlatformDetector detects the current platform.
type PlatformDetector interface {
	Detect(ctx context.Context) (*Platform, error)
}

// HostDetector implements PlatformDetector with gopsutil.
type HostDetector struct{}

// Detect returns OS and architecture from the runtime and the hostname and
// distribution from gopsutil. A failed host lookup leaves those fields empty.
func (HostDetector) Detect(ctx context.Context) (*Platform, error) {
	info := &Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}

	stat, err := host.InfoWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		return info, nil
	}
	info.Hostname = stat.Hostname
	info.Distro = stat.Platform
	return info, nil
}

// injectPlatformTable exposes info as a read-only global "platform" table.
func injectPlatformTable(L *lua.LState, info *Platform) {
	table := L.NewTable()
	L.SetField(table, "os", lua.LString(info.OS))
	L.SetField(table, "arch", lua.LString(info.Arch))
	L.SetField(table, "hostname", lua.LString(info.Hostname))
	L.SetField(table, "distro", lua.LString(info.Distro))
	L.SetField(table, "is_linux", lua.LBool(info.OS == "linux"))
	L.SetField(table, "is_macos", lua.LBool(info.OS == "darwin"))
	L.SetField(table, "is_windows", lua.LBool(info.OS == "windows"))

	L.SetGlobal(luaGlobalPlatform, makeReadOnly(L, table))
}

// makeReadOnly returns a proxy that reads through to table and rejects writes.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only and cannot be modified")
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
