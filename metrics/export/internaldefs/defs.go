// Package internaldefs maps metric IDs to stable exposition names shared by
// the exporters. It is internal to the metrics/export tree.
package internaldefs

import (
	authkit "github.com/loopchat/authkit"
)

// CounterDef binds one counter ID to its exposition name and help text.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// HistogramDef binds one histogram ID to its exposition name and help text.
type HistogramDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: authkit.MetricSignInSuccess, Name: "authkit_sign_in_success_total", Help: "Sign-ins that produced a session."},
	{ID: authkit.MetricSignInFailure, Name: "authkit_sign_in_failure_total", Help: "Rejected or failed sign-ins."},
	{ID: authkit.MetricSignUpSuccess, Name: "authkit_sign_up_success_total", Help: "Registrations that ended signed in."},
	{ID: authkit.MetricSignUpRejected, Name: "authkit_sign_up_rejected_total", Help: "Registrations refused by validation or the backend."},
	{ID: authkit.MetricSignUpFailure, Name: "authkit_sign_up_failure_total", Help: "Registrations lost to transport or login errors."},
	{ID: authkit.MetricSignOut, Name: "authkit_sign_out_total", Help: "Explicit and forced sign-outs."},
	{ID: authkit.MetricSessionRestored, Name: "authkit_session_restored_total", Help: "Sessions rebuilt from the token store."},
	{ID: authkit.MetricRefreshSuccess, Name: "authkit_refresh_success_total", Help: "Refreshes that produced a new access token."},
	{ID: authkit.MetricRefreshFailure, Name: "authkit_refresh_failure_total", Help: "Refreshes that did not."},
	{ID: authkit.MetricRefreshCoalesced, Name: "authkit_refresh_coalesced_total", Help: "Callers attached to an in-flight refresh."},
	{ID: authkit.MetricRefreshStale, Name: "authkit_refresh_stale_total", Help: "Refresh results discarded after a racing sign-out."},
	{ID: authkit.MetricRequestRetried, Name: "authkit_request_retried_total", Help: "Requests replayed once after a refresh."},
	{ID: authkit.MetricRequestAuthFailed, Name: "authkit_request_auth_failed_total", Help: "Requests whose retry still came back unauthorized."},
	{ID: authkit.MetricStoreFailure, Name: "authkit_store_failure_total", Help: "Token store reads and writes that errored."},
	{ID: authkit.MetricSocketOpened, Name: "authkit_socket_opened_total", Help: "Fresh websocket dials."},
	{ID: authkit.MetricSocketReused, Name: "authkit_socket_reused_total", Help: "Dials satisfied by a live cached socket."},
	{ID: authkit.MetricSocketClosed, Name: "authkit_socket_closed_total", Help: "Sockets closed by callers or sign-out."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authkit.MetricRequestLatency, Name: "authkit_request_latency_seconds", Help: "Authenticated request latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the fixed latency
// buckets.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// histogram expositions expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
