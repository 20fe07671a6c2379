// Package order holds the per-visitor order panel state and its validation.
//
// A Session moves Closed → Open when a card's order action fires for an
// orderable entry, and back to Closed on cancel or after checkout dispatch.
package order
