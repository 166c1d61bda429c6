// Package models defines the entities that flow through a chartx run.
//
// The package contains two categories of types:
//
// 1. Pipeline values: immutable structs passed between stages
//   - [ChartEntry] : one scraped chart row with its position
//   - [NormalizedEntry] : an entry with cleaned title and artist
//   - [MatchCandidate] : one catalog search result
//   - [ResolvedTrack] : the resolver's verdict with a [Confidence]
//   - [PlaylistResult] : counts and failed batches from playlist assembly
//
// 2. Persistent entities: database-backed run history
//   - [Run] : one pipeline invocation and its playlist outcome
//   - [Resolution] : per-entry outcome of a run
//
// Persistent entities implement the Model interface, and the Repository[T] interface defines standard CRUD operations for database access.
package models
