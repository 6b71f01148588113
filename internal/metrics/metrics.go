// Package metrics exposes prometheus counters for authentication and approvals.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	authAttempts      *prometheus.CounterVec
	approvalAttempts  *prometheus.CounterVec
	proposalsCreated  prometheus.Counter
	proposalsFinished *prometheus.CounterVec
)

func ensure() {
	metricsOnce.Do(func() {
		authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosign",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"result"})
		approvalAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosign",
			Subsystem: "proposal",
			Name:      "approval_attempts_total",
			Help:      "Approval submissions by outcome",
		}, []string{"result"})
		proposalsCreated = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "cosign",
			Subsystem: "proposal",
			Name:      "created_total",
			Help:      "Proposals created",
		})
		proposalsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosign",
			Subsystem: "proposal",
			Name:      "finished_total",
			Help:      "Proposals that reached a terminal status",
		}, []string{"status"})
	})
}

// ObserveAuth counts a login attempt. result is "success" or an error code.
func ObserveAuth(result string) {
	ensure()
	authAttempts.WithLabelValues(result).Inc()
}

// ObserveApproval counts an approval submission.
func ObserveApproval(result string) {
	ensure()
	approvalAttempts.WithLabelValues(result).Inc()
}

func ObserveProposalCreated() {
	ensure()
	proposalsCreated.Inc()
}

func ObserveProposalFinished(status string) {
	ensure()
	proposalsFinished.WithLabelValues(status).Inc()
}
