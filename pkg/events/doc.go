/*
Package events provides an in-memory event broker for Burrow's cluster
notifications.

Components publish lifecycle changes (container closing or closed, pipeline
dormant, datanode marked stale, bucket identity reissued) and any number of
subscribers receive every event. Delivery is best effort:

  - Publish never blocks. A full broker queue or a stopped broker drops the
    event, and Publish reports it.
  - A subscriber whose buffer is full misses the event.

Events are notifications only. Nothing that must survive a restart travels
through the broker; durable state lives in pkg/storage.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(events.NewEvent(events.EventContainerClosing, "container 12 full",
		map[string]string{"container_id": "12"}))

A nil *Broker is valid and discards everything, so components can take an
optional broker without nil checks.
*/
package events
