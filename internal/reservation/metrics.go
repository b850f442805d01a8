package reservation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/iliyamo/store-reservation/internal/reservation")

var (
	created = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_created_total",
		Help: "Reservations committed.",
	})
	cancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_cancelled_total",
		Help: "Reservations moved to CANCELLED.",
	})
	failures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_validation_failures_total",
		Help: "Reservation requests rejected by validation, by reason.",
	}, []string{"reason"})
)
