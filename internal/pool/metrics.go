package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

var (
	// operationsTotal tracks committed operations by kind.
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperdrive_operations_total",
			Help: "Total number of committed pool operations",
		},
		[]string{"operation"},
	)

	// operationVolumeBase tracks base-denominated operation sizes.
	operationVolumeBase = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hyperdrive_operation_volume_base",
			Help:    "Base-denominated size of committed pool operations",
			Buckets: prometheus.ExponentialBuckets(1, 10, 10),
		},
		[]string{"operation"},
	)

	// shareReservesGauge mirrors the pool's share reserves.
	shareReservesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperdrive_share_reserves",
		Help: "Pool share reserves",
	})

	// bondReservesGauge mirrors the pool's bond reserves.
	bondReservesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperdrive_bond_reserves",
		Help: "Pool bond reserves",
	})

	// longsOutstandingGauge mirrors the outstanding long face value.
	longsOutstandingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperdrive_longs_outstanding",
		Help: "Outstanding long face value in bonds",
	})

	// shortsOutstandingGauge mirrors the outstanding short face value.
	shortsOutstandingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperdrive_shorts_outstanding",
		Help: "Outstanding short face value in bonds",
	})

	// solvencyRejectionsTotal counts operations rolled back because
	// they would have left the pool undercollateralized.
	solvencyRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hyperdrive_solvency_rejections_total",
		Help: "Total number of operations rejected by the solvency check",
	})

	// governanceFeesGauge mirrors the accrued governance fees.
	governanceFeesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperdrive_governance_fees_accrued_shares",
		Help: "Governance fees accrued in vault shares",
	})
)

func observeOperation(operation string, amount fixedpoint.FixedPoint) {
	operationsTotal.WithLabelValues(operation).Inc()
	operationVolumeBase.WithLabelValues(operation).Observe(amount.Float64())
}

// observeState refreshes the reserve gauges. Callers hold the
// operation lock.
func (p *Pool) observeState() {
	shareReservesGauge.Set(p.state.ShareReserves.Float64())
	bondReservesGauge.Set(p.state.BondReserves.Float64())
	longsOutstandingGauge.Set(p.state.LongsOutstanding.Float64())
	shortsOutstandingGauge.Set(p.state.ShortsOutstanding.Float64())
	governanceFeesGauge.Set(p.state.GovernanceFeesAccrued.Float64())
}
