// Package main hosts the iomanager CLI entrypoint and command graph.
//
// The Cobra command tree covers the operator's day: scan a delivery into a
// row manifest, reconcile timing with edit, preview the farm job graphs with
// plan, submit with process, publish editorial movies, and follow up with
// runs. serve exposes the same operations over HTTP and doctor checks the
// environment.
//
// Commands share one commandContext that resolves configuration, the logger
// and the remote clients once. Domain logic lives in internal packages; keep
// commands limited to argument handling and output.
package main
