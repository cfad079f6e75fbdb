// Package frames holds the frame-range value types shared by the reconciler,
// the job graph builder and the farm client: inclusive frame ranges, the
// chunk planner that splits long ranges into farm-sized pieces, and SMPTE
// timecodes.
package frames
