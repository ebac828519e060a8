// Package session drives an engine from an ordered event log.
//
// An event log is what the external simulator would emit: decision windows
// with their snapshots, interleaved with scope-advance signals. Logs are
// JSONL (one event per line) or YAML (a list, optionally under "events").
//
//	{"window": "after_point_set", "snapshot": {"point_on": true, "point_number": 6}}
//	{"advance": "roll"}
package session
