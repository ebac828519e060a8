// Package engine implements the behavior engine: the orchestrator that asks
// compiled rules, one decision window at a time, whether to propose an action.
//
// ARCHITECTURE:
//
// Window Evaluation:
// For each rule in declaration order the engine
// 1. skips the rule with reason COOLDOWN while any configured axis is cooling down
// 2. evaluates guards in order; a false or failing guard records GUARD_FALSE
// 3. evaluates the condition; a failure records WHEN_EVAL_ERROR, false is a plain miss
// 4. builds the intent through the verb registry, records the fire, arms the
// cooldown and stops
//
// At most one rule fires per window. Every attempt, misses included, is
// written to the journal before the next rule is considered.
//
// Scope Advance:
// The external driver calls OnScopeAdvance once per roll, hand or point-cycle
// boundary. Every tracked cooldown on that axis drops by one, floored at 0.
//
// CRITICAL PATTERNS:
//
// Logical Clock
// Every attempt is stamped with a monotonic seq from Clock.Next().
// NEVER use wall-clock timestamps for ordering.
//
// Deterministic Evaluation
// Rules evaluated in declaration order. No randomness, no concurrency.
// Two engines built from the same rules and fed the same windows and
// advances produce identical intents and identical journals.
package engine
