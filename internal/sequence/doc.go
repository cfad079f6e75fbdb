// Package sequence inspects scan folders. Resolve turns a directory of
// numbered image files into a contiguous frame span with a frame-to-path
// map, and ParseScanName extracts shot, plate tag and version from scan names
// such as "A01_001_mp0_v001".
package sequence
