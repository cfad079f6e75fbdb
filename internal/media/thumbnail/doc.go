// Package thumbnail extracts preview stills for scan rows with ffmpeg.
//
// Generate runs a bounded worker pool; one aggregator goroutine owns the
// result slice and progress counter so callers never see partial state.
package thumbnail
