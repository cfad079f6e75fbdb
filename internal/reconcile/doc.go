// Package reconcile keeps a row's working frame fields consistent when one of
// them is edited.
//
// Plate applies an Edit to a plate row and returns a new row snapshot;
// EditRow does the same for editorial rows, which only accept a frame handle
// or offsets measured against the immutable original range. Both are pure:
// the only outside input is the source-timecode lookup used by retime
// timecode edits.
package reconcile
