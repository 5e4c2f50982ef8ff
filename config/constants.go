package config

import "github.com/brettbedarf/deskfs/internal/util"

// CLI verbosity values accepted by ConfigOverride.LogLvl
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl      = util.InfoLevel
	DefaultBackend     = "file"
	DefaultDataPath    = ".deskfs"
	DefaultSnapshotKey = "prathvios-files"
	DefaultMetricsAddr = ""

	DefaultFsName = "deskfs"
	DefaultName   = "deskfs"

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0
)
