// Package scripts renders the Python artifacts that farm jobs execute: the
// Nuke render and comp builders, the shot-repository publish script and
// batched copy scripts.
//
// Script content is produced from embedded text/template files and written
// next to the scan data; callers only deal with the resulting paths.
package scripts
