package checkpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// checkpointsMinted tracks checkpoints minted since start.
	checkpointsMinted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hyperdrive_checkpoints_minted_total",
		Help: "Total number of checkpoints minted",
	})

	// latestCheckpointTime tracks the most recently minted checkpoint.
	latestCheckpointTime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperdrive_latest_checkpoint_time_seconds",
		Help: "Unix time of the most recently minted checkpoint",
	})
)
