// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual video/data stream properties and tags
//   - ClipInfo: start timecode, duration in frames, frame rate and size of a clip
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - ProbeClip: executes ffprobe and derives ClipInfo
package ffprobe
