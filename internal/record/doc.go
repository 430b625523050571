// Package record turns raw dump text into record blocks and derives the
// per-record values the index writer needs: a stable document id, the
// cleaned body, its content hash and a coarse type guess.
//
// Everything here is pure and deterministic. Functions take strings and
// return strings so they can be tested without a database.
package record
