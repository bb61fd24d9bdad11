package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// RecalcTotal counts booking totals recalculation outcomes.
	RecalcTotal *prometheus.CounterVec
	// PaymentStatusAdjustTotal counts automatic payment status transitions by resulting status.
	PaymentStatusAdjustTotal *prometheus.CounterVec
	// HistoryEntriesTotal counts audit trail rows written by action.
	HistoryEntriesTotal *prometheus.CounterVec
	// NotifyEmailTotal counts booking email dispatch outcomes.
	NotifyEmailTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		RecalcTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_recalc_total",
			Help:      "Count of booking totals recalculation outcomes.",
		}, []string{"result"})
		PaymentStatusAdjustTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_payment_status_adjust_total",
			Help:      "Count of automatic payment status transitions.",
		}, []string{"status"})
		HistoryEntriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_history_entries_total",
			Help:      "Count of status history rows appended.",
		}, []string{"action"})
		NotifyEmailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_notify_email_total",
			Help:      "Count of booking email dispatch outcomes.",
		}, []string{"result"})
		reg.MustRegister(RecalcTotal, PaymentStatusAdjustTotal, HistoryEntriesTotal, NotifyEmailTotal)
	})
}

// CountRecalc increments the recalculation counter when metrics are registered.
func CountRecalc(result string) {
	if RecalcTotal != nil {
		RecalcTotal.WithLabelValues(result).Inc()
	}
}

// CountPaymentStatusAdjust increments the automatic transition counter.
func CountPaymentStatusAdjust(status string) {
	if PaymentStatusAdjustTotal != nil {
		PaymentStatusAdjustTotal.WithLabelValues(status).Inc()
	}
}

// CountHistoryEntry increments the history write counter.
func CountHistoryEntry(action string) {
	if HistoryEntriesTotal != nil {
		HistoryEntriesTotal.WithLabelValues(action).Inc()
	}
}

// CountNotifyEmail increments the notification email counter.
func CountNotifyEmail(result string) {
	if NotifyEmailTotal != nil {
		NotifyEmailTotal.WithLabelValues(result).Inc()
	}
}
