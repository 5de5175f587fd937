package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housevault_bets_total",
		Help: "Bets processed by the treasury, by lifecycle status",
	}, []string{"status", "game"})

	Rejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housevault_rejects_total",
		Help: "Treasury operations rejected, by error code",
	}, []string{"reason"})

	RebalanceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housevault_rebalance_total",
		Help: "Rebalancing transfers between a game partition and central",
	}, []string{"direction"})

	RebalanceAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housevault_rebalance_amount_total",
		Help: "Units moved by rebalancing transfers",
	}, []string{"direction"})

	PartitionBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "housevault_partition_balance",
		Help: "Last observed balance of a treasury partition",
	}, []string{"partition"})

	JournalStalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "housevault_journal_stalls_total",
		Help: "Treasury mutations that waited for the journal buffer to drain",
	})

	JournalRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "housevault_journal_retries_total",
		Help: "Failed journal writes that were retried",
	})

	JournalLost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "housevault_journal_lost_total",
		Help: "Treasury events that never reached the store",
	})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "housevault_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
