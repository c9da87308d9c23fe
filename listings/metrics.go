package listings

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	listingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campus_market",
			Name:      "listings_created_total",
			Help:      "Listings created, by category.",
		},
		[]string{"category"},
	)

	listingRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campus_market",
			Name:      "listing_rollbacks_total",
			Help:      "Listing creations undone, by the step that failed.",
		},
		[]string{"step"},
	)
)
