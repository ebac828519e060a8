// Package metrics exposes behavior engine activity as Prometheus metrics.
//
// EngineMetrics implements engine.Observer, so registering it with
// engine.WithObserver is enough to populate every series:
//
//	<ns>_attempts_total{rule_id, reason}   every journaled attempt
//	<ns>_fires_total{rule_id, verb}        attempts that produced an intent
//	<ns>_windows_total{window, fired}      window evaluations
//	<ns>_scope_advances_total{axis}        cooldown ticks
//	<ns>_reloads_total{result}             hot reloads of the rule set
//
// Plain misses and fires are labelled reason="none".
package metrics
