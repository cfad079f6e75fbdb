// Package shotgrid is a minimal ShotGrid REST client covering the lookups
// iomanager needs: projects, sequences, shots, pipeline steps, tasks and
// versions. Every find call falls back to a create on miss.
package shotgrid
