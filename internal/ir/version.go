package ir

// Version constants for persisted reports.
const (
	// IRVersion is the report schema version.
	IRVersion = "1"

	// EngineVersion is the eqsched engine version.
	EngineVersion = "0.1.0"
)
