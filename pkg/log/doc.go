/*
Package log provides structured logging for Burrow using zerolog.

A single global Logger is configured once at process start with Init and
child loggers are derived from it per component:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("blockmanager")
	logger.Info().Int64("container_id", 12).Msg("container closing")

Child loggers carry a fixed field so every line from a component can be
filtered on it:

	WithComponent(name)       component=<name>
	WithNodeID(id)            node_id=<id>
	WithContainerID(id)       container_id=<id>
	WithPipelineID(id)        pipeline_id=<id>

# Levels

Lifecycle transitions (container CLOSING/CLOSED, pipeline OPEN/DORMANT,
bootstrap state changes) are logged at info. Rejected block commits are
logged at debug because a client retrying with a stale sequence id is not an
operational problem. I/O failures that mark a container UNHEALTHY are logged
at error.

Console output (JSONOutput=false) is meant for development; production nodes
should log JSON.
*/
package log
