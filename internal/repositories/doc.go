// Package repositories implements SQLite persistence for users and sessions.
//
// Key Implementations:
//   - [UserRepository] : Spotify accounts that have signed in, looked up by ID or Spotify ID
//   - [SessionRepository] : the sqlite backend for server-side sessions
//
// Users carry a sequence number for stable, human-readable ordering (e.g., user #42) independent of IDs and
// creation timestamps. Users are soft deleted via deleted_at; sessions are hard deleted when they expire.
package repositories
