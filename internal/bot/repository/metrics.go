package repository

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var documentCommits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "repguard_document_transactions_total",
	Help: "Write transactions over the document store, by result",
}, []string{"result"})

var documentCommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "repguard_document_transaction_duration_seconds",
	Help:    "Time spent in load-modify-replace cycles",
	Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
})
