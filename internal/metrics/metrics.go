package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_runs_total",
		Help: "Total number of dispatch runs, labelled by graph name and outcome.",
	}, []string{"graph", "outcome"})

	NodesFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_nodes_fired_total",
		Help: "Total number of function and dispatcher node firings, labelled by kind.",
	}, []string{"kind"})

	DomainRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_domain_rejections_total",
		Help: "Total number of eligible nodes excluded by their input domain.",
	})

	InvocationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_invocation_errors_total",
		Help: "Total number of node invocation errors, labelled by whether they were raised.",
	}, []string{"raised"})

	PipeReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_pipe_replays_total",
		Help: "Total number of compiled pipe replays, labelled by outcome.",
	}, []string{"outcome"})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_run_duration_ms",
		Help:    "Dispatch run latency in milliseconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 1000},
	})

	BackendSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_backend_submissions_total",
		Help: "Total number of tasks submitted to execution backends, labelled by backend and outcome.",
	}, []string{"backend", "outcome"})

	QueueUtilization = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatch_backend_queue_utilization_ratio",
		Help: "Current pool backend queue utilization (0–1).",
	}, []string{"backend"})
)
