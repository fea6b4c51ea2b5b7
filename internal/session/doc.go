// Package session stores per-browser state for the web application.
//
// The browser only holds a signed cookie naming the session ([CookieCodec]); the session itself,
// including the Spotify token record, lives in a server-side [Store]:
//   - [MemoryStore] : process memory, for tests and development
//   - [RedisStore] : redis keys that expire with the session
//   - [PostgresStore] : a podx_sessions table through pgx
//
// The sqlite store lives in the repositories package. Persistent stores serialize sessions with a
// [Codec], which seals the token record using a [Sealer] keyed from the application secret.
//
// [Manager] loads the session for a request, saves it back with a refreshed cookie and clears it on logout.
package session
