package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trip_operations_total",
	Help: "Trip lifecycle operations grouped by operation and outcome.",
}, []string{"op", "result"})
