// Package tokens owns the persisted OAuth token map.
//
// A [Store] keeps at most one live [models.Token] per provider under a single key of a
// [repositories.KeyValueStore]. Tokens arrive either through an OAuth login (see services)
// or by capturing an implicit-grant redirect ([Store.CaptureFromRedirect]), whose parsing
// is a pure function of the query string and fragment.
//
// Corrupt persisted state fails closed: it reads as "no tokens" and is logged, never returned.
package tokens
