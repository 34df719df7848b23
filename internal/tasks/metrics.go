package tasks

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var operationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tasks_operations_total",
		Help: "Task service operations by outcome",
	},
	[]string{"op", "result"},
)

func init() {
	prometheus.MustRegister(operationsTotal)
}

func observe(op string, err error) {
	result := "ok"
	var verr *ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		result = "invalid"
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, ErrUnauthenticated):
		result = "unauthenticated"
	default:
		result = "error"
	}
	operationsTotal.WithLabelValues(op, result).Inc()
}
