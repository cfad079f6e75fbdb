// Package preflight provides readiness checks for the filesystem paths,
// local executables and remote services iomanager depends on.
//
// These checks run in two contexts:
//   - "iomanager process" calls RunAll before submitting and refuses to start
//     a batch when a required check fails.
//   - "iomanager doctor" prints every check, including optional tools.
//
// Remote checks are skipped when the service is not configured.
package preflight
