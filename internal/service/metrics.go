package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActionsCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miner_actions_committed_total",
			Help: "Gated actions that passed engagement and were committed",
		},
		[]string{"action"},
	)
	ActionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miner_actions_rejected_total",
			Help: "Actions refused by a precondition",
		},
		[]string{"action"},
	)
	EngagementDeclined = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miner_engagement_declined_total",
			Help: "Ad or link engagements that did not complete",
		},
		[]string{"action"},
	)
	SessionsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "miner_sessions_completed_total",
		Help: "Mining sessions credited",
	})
	WithdrawalsRequested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "miner_withdrawals_requested_total",
		Help: "Withdrawal records created",
	})
	PersistFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "miner_persist_failures_total",
		Help: "Failed writes of account or settings documents",
	})
	LoadedAccounts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "miner_loaded_accounts",
		Help: "Account containers currently held in memory",
	})
)

func init() {
	prometheus.MustRegister(ActionsCommitted)
	prometheus.MustRegister(ActionsRejected)
	prometheus.MustRegister(EngagementDeclined)
	prometheus.MustRegister(SessionsCompleted)
	prometheus.MustRegister(WithdrawalsRequested)
	prometheus.MustRegister(PersistFailures)
	prometheus.MustRegister(LoadedAccounts)
}
