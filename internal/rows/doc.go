// Package rows holds the scan row model and the loaders that build rows from
// scan folders and YAML manifests.
package rows
