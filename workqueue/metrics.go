package workqueue

import "github.com/prometheus/client_golang/prometheus"

type queueMetrics struct {
	tasksSubmitted prometheus.Counter
	tasksCompleted prometheus.Counter
	tasksFailed    prometheus.Counter
	tasksInFlight  prometheus.Gauge
}

func newQueueMetrics(reg prometheus.Registerer) *queueMetrics {
	m := &queueMetrics{
		tasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workqueue",
			Name:      "tasks_submitted_total",
			Help:      "Number of future tasks accepted by the bridge.",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workqueue",
			Name:      "tasks_completed_total",
			Help:      "Number of future tasks resolved successfully.",
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workqueue",
			Name:      "tasks_failed_total",
			Help:      "Number of future tasks resolved with a failure.",
		}),
		tasksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "workqueue",
			Name:      "tasks_in_flight",
			Help:      "Number of tasks submitted to the dispatcher and not yet collected.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.tasksSubmitted, m.tasksCompleted, m.tasksFailed, m.tasksInFlight)
	}
	return m
}
