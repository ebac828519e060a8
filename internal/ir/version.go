package ir

// Version constants for behavior specs and the engine.
const (
	// SchemaVersion is the only behavior.schema_version literal accepted by the compiler.
	SchemaVersion = "1.0"

	// EngineVersion is the behavior engine version recorded on every run.
	EngineVersion = "0.3.0"

	// OriginDSL marks attempts produced by compiled behavior rules.
	OriginDSL = "dsl"
)
