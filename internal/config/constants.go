package config

// Lua schema field names and globals
const (
	luaGlobalIsos      = "isos"
	luaGlobalPlatform  = "platform"
	luaFieldUSB        = "usb"
	luaFieldPath       = "path"
	luaFieldAutoDetect = "auto_detect"
	luaFieldMarker     = "marker"
	luaFieldVerify     = "verify"
	luaFieldBackend    = "backend"
	luaFieldKeyserver  = "keyserver"
	luaFieldDownload   = "download"
	luaFieldRetries    = "retries"
	luaFieldTimeout    = "timeout"
	luaFieldUserAgent  = "user_agent"
	luaFieldLog        = "log"
	luaFieldLevel      = "level"
	luaFieldFormat     = "format"
	luaFieldFile       = "file"
	luaFieldHistory    = "history"
)

// Layout of the base directory.
const (
	// EnvDir overrides the base directory.
	EnvDir = "ISO_UPDATER_DIR"

	DirName      = ".isos"
	DataFile     = "data.json"
	SettingsFile = "isos.lua"
	ImagesDir    = "images"
	KeyringsDir  = "keyrings"
	LogsDir      = "logs"
	LogFile      = "iso-updater.log"
	HistoryDir   = ".history"
	LockFile     = ".lock"
)

// Limits
const (
	MaxRetries = 10
)
