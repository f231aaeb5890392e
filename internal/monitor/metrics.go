package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skywatch_probes_total",
		Help: "Probe results processed, by status.",
	}, []string{"status"})

	outagesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skywatch_outages_opened_total",
		Help: "Outage records opened.",
	})

	outagesResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skywatch_outages_resolved_total",
		Help: "Outage records resolved.",
	})

	rollupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skywatch_uptime_rollups_total",
		Help: "Uptime rollups executed.",
	})
)
