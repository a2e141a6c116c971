// Package config provides Lua settings parsing and generation for
// iso-updater, and the layout of its base directory.
//
// # Overview
//
// Settings live in ~/.isos/isos.lua (or $ISO_UPDATER_DIR/isos.lua). The file
// declares a single global table:
//
//	isos = {
//	  usb = { path = "/media/me/Ventoy", auto_detect = true, marker = "ventoy" },
//	  verify = { backend = "openpgp", keyserver = "hkps://keys.openpgp.org" },
//	  download = { retries = 3, timeout = "30m", user_agent = "iso-updater" },
//	  log = { level = "info", format = "text", file = true },
//	  history = true,
//	}
//
// Every field is optional; anything left out keeps its value from Defaults.
// A missing file is equivalent to an empty one. The sources themselves are
// not configured here: they are persisted in data.json and edited with the
// source subcommands.
//
// # Sandboxing
//
// The file runs in a gopher-lua VM without os, io, debug or any module
// loading, so settings stay declarative. A read-only platform table exposes
// os, arch, hostname and distro for per-machine conditionals:
//
//	isos = {
//	  usb = { path = platform.hostname == "desk" and "/mnt/ventoy" or "" },
//	}
//
// # Errors
//
// Syntax errors, wrong field types and failed validation are returned as
// *ParseError, which matches ErrConfig under errors.Is. FormatError renders
// one for the terminal.
package config
