package ir

// Version constants for persisted data and the compiler.
const (
	// SchemaVersion is the version of persisted plans and checksums.
	SchemaVersion = "1"

	// EngineVersion is the quire compiler version.
	EngineVersion = "0.1.0"
)
