// Package reconcile holds the shift reconciliation engine: naive time
// conversion, weekly schedule matching, on-time classification and
// elapsed-time aggregation. Everything here is pure and clock-free; callers
// pass the current instant in.
//
// Schedule times are naive "HH:MM:SS" strings. They are read as UTC wall
// clock and anchored on the UTC date of "now", and the classifier compares
// that against the UTC wall clock of the current instant. Renderings in the
// user's zone (StartLocal, EndLocal) are for display only.
package reconcile
