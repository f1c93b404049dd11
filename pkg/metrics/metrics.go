package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignInAttempts records federated sign-in attempts by result
	// (success|rejected|invalid|upstream_error|error).
	SignInAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamspace_signin_attempts_total",
			Help: "Total number of federated sign-in attempts",
		},
		[]string{"provider", "result"},
	)

	// TeamsProvisioned counts teams created on first sign-in.
	TeamsProvisioned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teamspace_teams_provisioned_total",
			Help: "Total number of teams provisioned by sign-in",
		},
	)

	// UsersProvisioned counts user accounts created on first sign-in.
	UsersProvisioned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teamspace_users_provisioned_total",
			Help: "Total number of users provisioned by sign-in",
		},
	)

	// AvatarProbes counts logo probe outcomes (logo|fallback|cached).
	AvatarProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamspace_avatar_probes_total",
			Help: "Total number of team logo lookups",
		},
		[]string{"result"},
	)

	// BackgroundJobs counts detached job executions by name and result (ok|error|panic|dropped).
	BackgroundJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamspace_background_jobs_total",
			Help: "Total number of background jobs processed",
		},
		[]string{"job", "result"},
	)

	// MaintenanceRuns counts scheduled maintenance runs by task and result.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamspace_maintenance_runs_total",
			Help: "Total number of maintenance task runs",
		},
		[]string{"task", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teamspace_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
