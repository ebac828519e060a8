// Package journal implements the decisions journal: an append-only record of
// every rule attempt the engine makes, in evaluation order.
//
// Journals never rewrite or delete entries. The file journal writes one
// canonical JSON object per line (decisions.jsonl); the same encoding feeds
// ir.JournalDigest, so two runs can be compared line for line.
package journal
