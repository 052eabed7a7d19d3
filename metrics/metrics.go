package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LivenessTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_liveness_ticks_total",
		Help: "Completed peer-liveness poll cycles.",
	})

	SamplesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_uptime_samples_total",
		Help: "Uptime samples recorded, by observed state.",
	}, []string{"state"})

	AirdropsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_airdrops_created_total",
		Help: "Candidate airdrops built by the aggregator.",
	})

	AirdropsRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_airdrops_relayed_total",
		Help: "Airdrop transactions broadcast to the chain.",
	})

	AirdropsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_airdrops_finalized_total",
		Help: "Airdrops reconciled to a terminal status.",
	}, []string{"status"})

	RelayFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_relay_failures_total",
		Help: "Relay attempts aborted by a chain or store error.",
	})

	RateRefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_rate_refresh_failures_total",
		Help: "Exchange-rate refresh attempts that fell back to stored rates.",
	})
)
