// Package state persists the set of issue keys that have already been
// alerted, so restarts do not re-notify.
//
// Drivers:
//   - "file" (default): a flat JSON array of keys, written atomically
//   - "sqlite": a single-table database (requires the sqlite build tag)
package state
