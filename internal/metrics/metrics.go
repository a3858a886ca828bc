package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zenbook",
			Name:      "http_requests_total",
			Help:      "Count of API requests by handler.",
		},
		[]string{"handler"},
	)

	reservationCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zenbook",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created by source.",
		},
		[]string{"source"},
	)

	reservationCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zenbook",
			Name:      "reservation_cancelled_total",
			Help:      "Count of reservations cancelled via the API.",
		},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zenbook",
			Name:      "booking_rejected_total",
			Help:      "Count of rejected booking attempts by reason.",
		},
		[]string{"reason"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservationCreated, reservationCancelled, bookingRejected)
	})
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}

func IncReservationCreated(source string) {
	reservationCreated.WithLabelValues(source).Inc()
}

func AddReservationsCancelled(n int) {
	reservationCancelled.Add(float64(n))
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}
