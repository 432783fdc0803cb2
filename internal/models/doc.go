// Package models defines the core domain models for travelmatch.
//
// # Models
//
//   - User: a traveler who submitted an arrival (immutable once stored)
//   - Group: travelers considered mutually compatible for sharing a ride
//   - Submission: validated input of a single submit call
//   - MatchResult: outcome of matching one submission
//
// # Design Principles
//
// 1. **Opaque identities**: users and groups reference each other by ID strings, never pointers
// 2. **Append-only groups**: a group only ever gains members, it is never rewritten or deleted
// 3. **Optimistic concurrency**: Group.Version changes on every append and guards concurrent writers
package models
