// Package conflict detects and resolves divergence between local billing
// entries and their remote copies. The detector compares a fixed field set
// with type-aware equality and flags near-duplicate entries by description
// similarity; every finding is persisted as a pending conflict. The resolver
// applies a ranked per-field rule table (source wins, target wins, latest
// wins, merge, manual review) and closes what it can, leaving the rest for
// a human.
package conflict
