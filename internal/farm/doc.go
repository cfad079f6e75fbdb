// Package farm submits job specs to the render farm.
//
// Submitter is the narrow contract the batch processor depends on; Deadline
// implements it against the Deadline Web Service REST API.
package farm
