// Package services defines the [Catalog] and [PlaylistWriter] interfaces used by the pipeline and implements them for Spotify.
//
// # Spotify Implementation
//
// [SpotifyService] talks to the Web API with plain HTTP so that status codes and the Retry-After header stay visible.
// The OAuth2 token is held by a guard: reads share a lock, and refreshes are collapsed into a single in-flight
// request. A 401 forces one refresh and replays the request once.
//
// # Error Handling
//
// Responses are mapped to typed errors from the shared package:
//   - 401 (after the forced refresh) and 403: [shared.AuthError]
//   - 429: [shared.RateLimitError] with the parsed Retry-After
//   - 5xx and transport failures: [shared.ServiceUnavailableError]
//   - any other non-2xx: [shared.APIError]
//
// Callers decide what to retry with [shared.IsTransient].
package services
