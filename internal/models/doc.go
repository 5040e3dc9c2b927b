// Package models defines the data model shared by the token store, provider adapters, registry and sync engine.
//
// The package contains three categories of types:
//
// 1. Provider snapshots: lightweight values fetched on demand from a provider and never mutated
//   - [Playlist] : playlist metadata from a music provider
//   - [Song] : title/artist pair, optionally carrying the provider-specific id
//
// 2. Session state: values owned by exactly one component for the lifetime of the process
//   - [Token] : OAuth token, owned by the token store
//   - [ProviderConnection] : connection state machine value, owned by the registry
//   - [SyncOutcome] : per-song, per-target result, owned by the sync engine
//
// 3. Reports: terminal summaries handed to the CLI for rendering
//   - [SyncResult] : per-song breakdown and per-target [Summary] of a sync job
//   - [BulkExportResult] : files written by a playlist export
//
// Nothing in this package is persisted except [Token], whose JSON shape is the storage format.
package models
