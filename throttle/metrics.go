package throttle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lockoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "campus_market_throttle_lockouts_total",
		Help: "Total number of identifiers locked out after exceeding the attempt limit",
	},
)
