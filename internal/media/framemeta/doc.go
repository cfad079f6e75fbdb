// Package framemeta reads the header metadata iomanager needs from single
// image frames: the embedded SMPTE timecode, the image size and, for EXR,
// camera clip names written by grading systems. OpenEXR and DPX headers are
// supported.
package framemeta
