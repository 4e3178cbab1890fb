package ir

// Version constants for the IR dump format and the compiler.
const (
	// IRVersion is the canonical IR dump format version.
	IRVersion = "1"

	// CompilerVersion is the blockjit compiler version.
	CompilerVersion = "0.1.0"
)
