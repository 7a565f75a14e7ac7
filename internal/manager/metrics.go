package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var loadsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "inferd",
	Name:      "model_loads_total",
	Help:      "Successful model loads since start.",
})

var loadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "inferd",
	Name:      "model_load_failures_total",
	Help:      "Model loads rejected or failed since start.",
})

var supervisedProcesses = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "inferd",
	Name:      "supervised_processes",
	Help:      "Backend processes currently supervised.",
})

var vramAllocatedMB = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "inferd",
	Name:      "vram_allocated_mb",
	Help:      "VRAM committed in the allocation ledger, in MB.",
})
