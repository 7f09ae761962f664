// Package align reconciles the heterogeneous per-sweep measurement grids of
// one acquisition volume onto a single reference gate/ray grid.
//
// Each decoded field arrives with its own radial sampling geometry (gate size,
// gate offset, gate count). Align picks the field reaching the farthest range
// as the reference, re-expresses every other field on the reference grid by an
// integer gate shift, and flags everything outside a field's native coverage
// as missing. Gate-size reconciliation is deliberately unsupported: a mismatch
// is an error for the one volume being processed, never approximated.
package align
