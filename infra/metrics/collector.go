package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/cdsensor/core/metrics"
	"github.com/kilianp07/cdsensor/core/platform"
	"github.com/kilianp07/cdsensor/infra/logger"
	"github.com/kilianp07/cdsensor/internal/eventbus"
)

// StartEventCollector subscribes to the snapshot bus and records every
// snapshot on sink. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[platform.Snapshot], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-sub:
				if !ok {
					return
				}
				if err := sink.RecordSensorState(snap.Event()); err != nil {
					log.Errorf("record %s: %v", snap.UniqueID, err)
				}
			}
		}
	}()
}
