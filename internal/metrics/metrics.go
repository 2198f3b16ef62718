package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the service counters. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry setup.
type Metrics struct {
	transactionsCreated *prometheus.CounterVec
	transactionsFailed  *prometheus.CounterVec
	callbacksProcessed  *prometheus.CounterVec
	callbacksDuplicate  *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		transactionsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_transactions_created_total",
			Help: "Transactions created, by type and provider.",
		}, []string{"type", "provider"}),
		transactionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_transactions_failed_total",
			Help: "Transactions that ended in FAILED, by type and provider.",
		}, []string{"type", "provider"}),
		callbacksProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_callbacks_processed_total",
			Help: "Gateway callbacks applied, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		callbacksDuplicate: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_callbacks_duplicate_total",
			Help: "Gateway callbacks ignored because the transaction already settled.",
		}, []string{"provider"}),
	}
}

func (m *Metrics) TransactionCreated(txnType, provider string) {
	if m == nil {
		return
	}
	m.transactionsCreated.WithLabelValues(txnType, provider).Inc()
}

func (m *Metrics) TransactionFailed(txnType, provider string) {
	if m == nil {
		return
	}
	m.transactionsFailed.WithLabelValues(txnType, provider).Inc()
}

func (m *Metrics) CallbackProcessed(provider, outcome string) {
	if m == nil {
		return
	}
	m.callbacksProcessed.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) CallbackDuplicate(provider string) {
	if m == nil {
		return
	}
	m.callbacksDuplicate.WithLabelValues(provider).Inc()
}
