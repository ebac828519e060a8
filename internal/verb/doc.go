// Package verb maps rule action names to intents.
//
// A Registry associates each verb name with a Signature (required and
// optional argument keys) and a Builder that shapes validated arguments into
// an Intent. The registry never checks legality: an intent is a proposal for
// an external layer to accept or reject.
//
// The default registry carries the four built-in verbs:
//
//	switch_profile(name)
//	press(bet, units=1)
//	regress(bet, units=1)
//	apply_policy(name)
package verb
