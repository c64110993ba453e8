package ir

// Version constants reported by the CLI.
const (
	// IRVersion is the version of the compiled filter shape.
	IRVersion = "1"

	// EngineVersion is the relfilter engine version.
	EngineVersion = "0.1.0"
)
