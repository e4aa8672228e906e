package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CoreMetrics covers the access-control and ledger hot paths.
type CoreMetrics struct {
	authzDecisions *prometheus.CounterVec
	ledgerEntries  *prometheus.CounterVec
	serialsIssued  prometheus.Counter
	orphansLinked  prometheus.Counter
}

// NewCoreMetrics registers the core counters on the provided registerer.
func NewCoreMetrics(reg prometheus.Registerer) *CoreMetrics {
	if reg == nil {
		return &CoreMetrics{}
	}
	authzDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authz_decisions_total",
		Help: "Authorization decisions by outcome.",
	}, []string{"decision"})
	ledgerEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_total",
		Help: "Appended credit ledger entries by type.",
	}, []string{"entry_type"})
	serialsIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qr_serials_issued_total",
		Help: "QR serial numbers handed out by the allocator.",
	})
	orphansLinked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_orphans_linked_total",
		Help: "Orphaned elevated users linked to a role by reconciliation.",
	})
	reg.MustRegister(authzDecisions, ledgerEntries, serialsIssued, orphansLinked)
	return &CoreMetrics{
		authzDecisions: authzDecisions,
		ledgerEntries:  ledgerEntries,
		serialsIssued:  serialsIssued,
		orphansLinked:  orphansLinked,
	}
}

// IncAuthzDecision records an allow or deny outcome.
func (c *CoreMetrics) IncAuthzDecision(decision string) {
	if c == nil || c.authzDecisions == nil {
		return
	}
	c.authzDecisions.WithLabelValues(normalizeLabel(decision)).Inc()
}

// IncLedgerEntry records an appended ledger entry.
func (c *CoreMetrics) IncLedgerEntry(entryType string) {
	if c == nil || c.ledgerEntries == nil {
		return
	}
	c.ledgerEntries.WithLabelValues(normalizeLabel(entryType)).Inc()
}

// IncSerialIssued records a successful serial allocation.
func (c *CoreMetrics) IncSerialIssued() {
	if c == nil || c.serialsIssued == nil {
		return
	}
	c.serialsIssued.Inc()
}

// IncOrphanLinked records a reconciled orphan.
func (c *CoreMetrics) IncOrphanLinked() {
	if c == nil || c.orphansLinked == nil {
		return
	}
	c.orphansLinked.Inc()
}
