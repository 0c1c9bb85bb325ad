package miner

import (
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	pipelineCreatedMeter = metrics.NewRegisteredMeter("miner/selection/pipeline", nil)

	txSelectedMeter          = metrics.NewRegisteredMeter("miner/selection/selected", nil)
	txRejectedPermanentMeter = metrics.NewRegisteredMeter("miner/selection/rejected/permanent", nil)
	txRejectedDeferredMeter  = metrics.NewRegisteredMeter("miner/selection/rejected/deferred", nil)

	pipelineSelectedGauge = metrics.NewRegisteredGauge("miner/selection/pipeline/selected", nil)
)

func markResult(result SelectionResult) {
	switch {
	case result.Selected():
		txSelectedMeter.Mark(1)
	case result.Permanence == Permanent:
		txRejectedPermanentMeter.Mark(1)
	default:
		txRejectedDeferredMeter.Mark(1)
	}
}
