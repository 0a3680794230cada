// Package ir provides the core data types of quire: identifiers, items,
// layouts, the site snapshot, plans, and the canonical value model used for
// checksums and persistence.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float or null values in IRValue trees
//   - Identifiers always carry a leading slash and never a trailing one
//   - A frozen Site rejects every mutation
//   - Plans serialize to canonical JSON, byte-stable across runs
package ir
