// Package models defines domain entities and persistence interfaces for podx.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): records decoded from the Spotify Web API
//   - [Profile] : the signed-in user's profile
//   - [SavedShow], [Show] : shows in the user's library
//   - [Episode] : an episode with its [ResumePoint]
//   - [EnrichedEpisode] : an episode with minutes and percent completed derived for display
//   - [Page] : one batch of a paginated listing
//
// 2. Persistent Entities: records owned by podx
//   - [User] : accounts that have signed in, implementing [Model]
//   - [Session] : server-side session state holding an optional [TokenRecord]
//
// [TokenRecord] is the access/refresh token pair with an epoch-seconds expiry.
// Only the token guard and the login callback write it.
package models
