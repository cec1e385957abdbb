package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type VaultMetrics struct {
	unlocks        *prometheus.CounterVec
	settles        prometheus.Counter
	liquidityOps   *prometheus.CounterVec
	managerOps     *prometheus.CounterVec
	poolsTotal     prometheus.Counter
	facadeFailures prometheus.Counter
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			unlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_unlock_total",
				Help: "Count of unlock brackets by outcome.",
			}, []string{"outcome"}),
			settles: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_settle_total",
				Help: "Count of delta-ledger settle reconciliations.",
			}),
			liquidityOps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_liquidity_ops_total",
				Help: "Count of liquidity settlements by kind.",
			}, []string{"kind"}),
			managerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_manager_ops_total",
				Help: "Count of asset-manager operations by kind.",
			}, []string{"kind"}),
			poolsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_pools_registered_total",
				Help: "Count of pool registrations.",
			}),
			facadeFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_share_facade_failures_total",
				Help: "Count of swallowed share-facade notification failures.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.unlocks,
			vaultRegistry.settles,
			vaultRegistry.liquidityOps,
			vaultRegistry.managerOps,
			vaultRegistry.poolsTotal,
			vaultRegistry.facadeFailures,
		)
	})
	return vaultRegistry
}

func (m *VaultMetrics) UnlockCommitted() { m.unlocks.WithLabelValues("committed").Inc() }
func (m *VaultMetrics) UnlockReverted()  { m.unlocks.WithLabelValues("reverted").Inc() }
func (m *VaultMetrics) Settled()         { m.settles.Inc() }

func (m *VaultMetrics) LiquidityOp(kind string) { m.liquidityOps.WithLabelValues(kind).Inc() }
func (m *VaultMetrics) ManagerOp(kind string)   { m.managerOps.WithLabelValues(kind).Inc() }
func (m *VaultMetrics) PoolRegistered()         { m.poolsTotal.Inc() }
func (m *VaultMetrics) FacadeFailure()          { m.facadeFailures.Inc() }
