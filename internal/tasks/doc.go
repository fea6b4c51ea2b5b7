// Package tasks loads and exports a user's podcast library with real-time progress reporting.
//
// # Collecting pages
//
// [Collect] drives any limit/offset listing to completion:
//   - Starts at offset 0 and advances by the page size
//   - Stops when a page reports no next cursor (at least one fetch is always made)
//   - Stops on an empty page, and fails with [shared.ErrPageLimit] after MaxPages
//   - Does not retry; transient upstream failures are retried by the client
//
// # Enrichment
//
// [EnrichEpisodes] derives minutes listened, duration in minutes and percent completed
// from each episode's resume point. Episodes without a duration report 0%.
//
// # Library
//
// [Library] combines the two for saved shows and show episodes and is shared by the
// web handlers, the CLI and the TUI. [Library.Export] writes the whole library to disk
// with a bounded, rate limited worker pool and a JSON manifest.
//
// # Progress Reporting
//
// Long-running operations send [ProgressUpdate] values on an optional channel.
// Sends never block; updates are dropped when the channel is full.
package tasks
