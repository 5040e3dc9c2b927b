// Package tasks orchestrates playlist operations between music providers with real-time progress reporting.
//
// # Sync Jobs
//
// [Engine.Start] validates a [SyncRequest] and runs it in the background as a [Job]:
//
//  1. Fetching : songs of the source playlist are read in order
//     - a failed read ends the job as Failed(SourceUnavailable)
//     - an empty playlist ends it as Failed(EmptySource) before any target is called
//  2. Matching : every song is searched on every target, targets concurrently, songs in order
//     - a search error is recorded for that song and target only
//  3. Transferring : per target, unmatched songs may be created, then songs are either
//     added to an existing playlist or library ([models.PolicyAdd]) or put in a new playlist
//     ([models.PolicyCreate]) titled after the source
//  4. Completed : the [models.SyncResult] holds an outcome per song and target
//
// [Job.Cancel] is honored until transfers begin and returns [shared.ErrCancelNotAllowed] afterwards.
// Cancelling the context passed to Start has the same effect. [Engine.Run] starts and waits.
//
// # Provider Calls
//
// Every adapter call is bounded by the configured call timeout. Timeouts and transport errors are
// retried with exponential backoff; authentication failures and malformed responses are not.
// Playlist creation is attempted once.
//
// # Exports
//
// [Engine.Export] writes playlists of a connected provider to disk in any [formatter] format.
// Songs are fetched under a [rate.Limiter] and written by a small worker pool; a manifest
// summarizing the export is written last.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for rendering.
// Updates use select with default to prevent blocking.
package tasks
