// Package services defines the [Adapter] interface for music streaming providers and implements it for Spotify, Deezer and an in-memory fixture provider.
//
// # Adapter Interface
//
// Every provider exposes the same capability set so the registry and the sync engine never branch on the provider.
// Read operations return (nil, nil) for "nothing there" and a non-nil error for failures; adapters never retry.
//
// # Spotify Implementation
//
// [SpotifyAdapter] logs in with the OAuth2 authorization-code flow through a [BrowserAuthorizer] and calls the
// Web API with github.com/zmb3/spotify/v2. The oauth2 client refreshes expired tokens; refreshed tokens are
// reported through [TokenNotifier] so they can be persisted.
//
// # Deezer Implementation
//
// [DeezerAdapter] logs in through connect.deezer.com and calls api.deezer.com directly. Requests share a
// rate limiter sized to Deezer's quota. Deezer answers errors with HTTP 200 and an error object; those are
// mapped onto the shared error taxonomy.
//
// # Fixed Implementation
//
// [FixedAdapter] serves fixed playlists and a fixed catalog from memory, resolves every call synchronously and
// accepts injected failures. [LoadFixture] reads one from a JSON file for offline use of the CLI.
//
// # Popup Login
//
// [BrowserAuthorizer] starts a short-lived local server, opens the consent page and waits for the popup
// callback to report through the two-method login contract of the server package.
//
// # Matching
//
// [Matcher] is shared by every adapter's Search:
//   - titles and artists are transliterated, lower-cased and whitespace-collapsed
//   - edition suffixes such as "(Remastered 2009)" or "- Live" are optionally ignored
//   - artists must be equal; a match is never returned across artists
//   - an exact title wins, otherwise the first fuzzy candidate in provider rank order
//
// # Error Handling
//
// Failures are returned as [*ProviderError] wrapping sentinels from the shared package:
//   - [shared.ErrNotAuthenticated] : no session attached
//   - [shared.ErrTokenExpired] : token rejected, reconnect needed
//   - [shared.ErrTransport] : HTTP request failed
//   - [shared.ErrMalformedResponse] : missing ids or titles, undecodable bodies, provider error objects
package services
