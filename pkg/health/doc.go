/*
Package health runs periodic probes against the resources a datanode depends
on and tracks whether each one is currently healthy.

Two probes exist:

	TCPChecker   a TCP connect to an address (the SCM)
	DiskChecker  a write to a directory plus a free space floor (the volume)

A Monitor runs each probe under a name on its own interval. Failures count
against a target only after Config.StartPeriod; Config.Retries consecutive
failures make it unhealthy and a single success makes it healthy again:

	mon := health.NewMonitor(func(name string, s health.Status) {
		metrics.UpdateComponent(name, s.Healthy, s.LastResult.Message)
	})
	mon.Add("volume", health.NewDiskChecker(dir), health.DefaultConfig())
	defer mon.Stop()

The datanode service feeds these results into pkg/metrics, where the
readiness endpoint picks them up.
*/
package health
