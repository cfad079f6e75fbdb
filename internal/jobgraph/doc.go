// Package jobgraph turns a confirmed row into the ordered set of farm jobs
// that publish it: script generation, per-chunk renders or plate copies, a
// movie render, an optional first comp script and the repository upload.
//
// A Graph only references earlier jobs, so submitting in slice order always
// has every dependency id available. Stages groups jobs that may be
// submitted concurrently.
package jobgraph
