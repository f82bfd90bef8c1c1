// Package metrics defines and registers all custom Prometheus metrics for the
// identity service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on import via
// promauto and exposed by the HTTP layer on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── Authentication ────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts by outcome.
// Label:
//   - result: "success", "invalid_credentials", "locked_out" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// PasswordResetsTotal counts password reset activity.
// Labels:
//   - stage: "request" or "reset"
//   - result: "sent", "unknown_email", "success", "rejected", "invalid_request" or "error"
var PasswordResetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_resets_total",
		Help:      "Total number of password reset requests and completions.",
	},
	[]string{"stage", "result"},
)

// PasswordChangeFallbackTotal counts password changes that needed the
// reset-token path after the direct change failed.
// Label:
//   - result: "success" or "failed"
var PasswordChangeFallbackTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_change_fallback_total",
		Help:      "Total number of password changes that used the token fallback.",
	},
	[]string{"result"},
)

// ── Roles ─────────────────────────────────────────────────────────────────────

// RoleAssignmentsTotal counts exclusive role assignments.
// Label:
//   - role: the assigned role key, or "none" when the set was cleared
var RoleAssignmentsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_assignments_total",
		Help:      "Total number of exclusive role assignments, by role.",
	},
	[]string{"role"},
)

// ── Audit ─────────────────────────────────────────────────────────────────────

// AuditEntriesTotal counts audit entries handed to the sink.
// Label:
//   - action: the audit action label (e.g. "Login succesvol")
var AuditEntriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_entries_total",
		Help:      "Total number of audit entries appended, by action.",
	},
	[]string{"action"},
)

// AuditWriteFailuresTotal counts audit entries that could not be persisted.
var AuditWriteFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_failures_total",
		Help:      "Total number of audit entries lost to sink errors.",
	},
)

// AuditQueueDepth tracks the number of entries waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit entries pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── Mail ──────────────────────────────────────────────────────────────────────

// MailTasksTotal counts outbound mail tasks.
// Labels:
//   - stage: "enqueue" or "deliver"
//   - result: "ok" or "error"
var MailTasksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_tasks_total",
		Help:      "Total number of mail tasks enqueued and delivered.",
	},
	[]string{"stage", "result"},
)
