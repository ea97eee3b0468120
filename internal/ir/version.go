package ir

// Version constants for journal records and the backend.
const (
	// RecordVersion is the journal record schema version.
	RecordVersion = "1"

	// EngineVersion is the sequence backend version.
	EngineVersion = "0.1.0"
)
