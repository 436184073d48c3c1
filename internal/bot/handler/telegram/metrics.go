package telegram

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var updatesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "repguard_telegram_updates_total",
	Help: "Telegram updates handled, by kind",
}, []string{"kind"})
