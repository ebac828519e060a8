// Package expr implements the constrained boolean expression language used by
// behavior rule conditions and guards.
//
// Expressions are lexed and parsed once, at compile time, into a small
// tagged-variant tree (Literal, VarRef, Compare, And, Or, Not). Evaluation is
// structural recursion over that tree against an ir.Snapshot. There is no
// other code path: anything the parser does not produce cannot run.
//
// Grammar (lowest to highest precedence):
//
//	expr    := or
//	or      := and { ("or" | "||") and }
//	and     := not { ("and" | "&&") not }
//	not     := ("not" | "!") not | compare
//	compare := primary { cmpop primary }
//	primary := number | "true" | "false" | identifier | "(" expr ")"
//	cmpop   := ">" | "<" | ">=" | "<=" | "==" | "!="
//
// Comparison chains read like arithmetic: "0 < drawdown <= 0.2" holds when
// both adjacent comparisons hold.
package expr
