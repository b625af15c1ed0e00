/*
Package scheduler places pipelines on datanodes.

The control plane calls the scheduler when a container needs a home and no
OPEN pipeline with the right replication has room for it. Placement is a
pure function of the node list and the live pipelines; the scheduler keeps
no state of its own, so the raft leader can call it from any goroutine.

# Placement

SelectNodes filters the node list down to ready candidates:

  - status HEALTHY (STALE and DEAD nodes never receive new pipelines)
  - not in Request.Exclude
  - free capacity of at least Request.Size
  - fewer live pipelines than the configured per-node limit

It then takes the least loaded candidate, removes it, and repeats until
RequiredNodes() members are chosen. Load is the number of non-CLOSED
pipelines a node belongs to. Ties go to the lowest node id.

When fewer candidates exist than the replication config needs, SelectNodes
returns an INVALID_CONFIGURATION error and places nothing.

# Pipeline reuse

SelectPipeline prefers an existing OPEN pipeline with matching replication
over allocating a new one, picking the one with the fewest containers below
the per-pipeline container limit.

# Usage

	sched := scheduler.NewScheduler(cfg.PipelineLimit)

	p := sched.SelectPipeline(pipelines, replication, maxContainers)
	if p == nil {
		members, err := sched.SelectNodes(nodes, pipelines, scheduler.Request{
			Replication: replication,
			Size:        containerSize,
		})
		if err != nil {
			return err
		}
		p, err = pipeline.New(pipeline.NewID(), members, replication)
		...
	}
*/
package scheduler
