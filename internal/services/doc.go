// Package services talks to Spotify: the accounts service for OAuth2 and the Web API for podcast data.
//
// # Authorization
//
// [SpotifyAuth] implements [Authorizer] on top of [oauth2.Config]. It never caches tokens:
// [SpotifyAuth.Refresh] builds a token source from the refresh token it is handed, so a fresh
// authorizer can be created for every refresh without leaking state between requests.
//
// # Web API
//
// [SpotifyService] implements [PodcastService] for a single access token. Paginated endpoints
// return a [models.Page] whose HasNext mirrors Spotify's "next" cursor.
//
// Requests share a process-wide [rate.Limiter] and retry 429/5xx responses a bounded number
// of times, honoring Retry-After.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no access token
//   - [shared.ErrTokenExpired] : upstream returned 401, reauthorization needed
//   - [shared.ErrRefreshFailed] : refresh exchange rejected or unreachable
//   - [shared.ErrShowNotFound] : show ID not found
//   - [shared.ErrAPIRequest] : any other failed request
package services
