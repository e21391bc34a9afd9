package authcore

import "sync/atomic"

// MetricID names one engine counter.
type MetricID int

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginLocked
	MetricLockoutTriggered
	MetricRefreshSuccess
	MetricRefreshReuse
	MetricRefreshFailure
	MetricLogout
	MetricLogoutAll
	MetricAuthorizeAllowed
	MetricAuthorizeDenied
	MetricAuthorizeUnauthenticated
	MetricSecretChanged
	MetricAccountRegistered
	MetricSessionEvicted
	MetricSessionRevoked
	MetricInviteIssued
	metricCount
)

var metricNames = [metricCount]string{
	MetricLoginSuccess:             "login_success",
	MetricLoginFailure:             "login_failure",
	MetricLoginLocked:              "login_locked",
	MetricLockoutTriggered:         "lockout_triggered",
	MetricRefreshSuccess:           "refresh_success",
	MetricRefreshReuse:             "refresh_reuse",
	MetricRefreshFailure:           "refresh_failure",
	MetricLogout:                   "logout",
	MetricLogoutAll:                "logout_all",
	MetricAuthorizeAllowed:         "authorize_allowed",
	MetricAuthorizeDenied:          "authorize_denied",
	MetricAuthorizeUnauthenticated: "authorize_unauthenticated",
	MetricSecretChanged:            "secret_changed",
	MetricAccountRegistered:        "account_registered",
	MetricSessionEvicted:           "session_evicted",
	MetricSessionRevoked:           "session_revoked",
	MetricInviteIssued:             "invite_issued",
}

// String returns the snake_case metric name.
func (id MetricID) String() string {
	if id < 0 || id >= metricCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every defined metric id, for exporters.
func MetricIDs() []MetricID {
	ids := make([]MetricID, metricCount)
	for i := range ids {
		ids[i] = MetricID(i)
	}
	return ids
}

// Metrics is a fixed set of in-process counters. Increment is one atomic
// add; there is no locking anywhere on the operation paths.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id < 0 || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Get returns one counter's current value.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id < 0 || id >= metricCount {
		return 0
	}
	return m.counters[id].Load()
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies all counters. Not atomic across counters; each individual
// value is a consistent atomic read.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return snap
	}
	for i := 0; i < int(metricCount); i++ {
		snap.Counters[MetricID(i)] = m.counters[i].Load()
	}
	return snap
}
