// Package broadcast maintains the per-execution subscriber sets for the
// live-status push channel and fans coordinator events out to them.
// Delivery is push-only and best-effort; clients re-fetch current status
// through the ordinary query interface on (re)connect.
package broadcast
