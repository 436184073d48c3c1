package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var statusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "repguard_status_changes_total",
	Help: "Status change requests, by result",
}, []string{"result"})

var pendingDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "repguard_pending_actions_total",
	Help: "Inputs routed to pending actions, by tag and outcome",
}, []string{"tag", "outcome"})

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRejection(err):
		return "rejected"
	default:
		return "failed"
	}
}
