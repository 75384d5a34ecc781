package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskavs"

var (
	ChainSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chain_submissions_total",
		Help:      "createTask submissions by result.",
	}, []string{"result"})

	ChainEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chain_events_total",
		Help:      "AVS events handled by event name and result.",
	}, []string{"event", "result"})

	ListenerUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "listener_up",
		Help:      "1 while the event subscription is live.",
	}, []string{"event"})

	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Wallet signature verifications by result.",
	}, []string{"result"})
)
