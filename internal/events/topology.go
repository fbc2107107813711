package events

import "github.com/swiftlogistics/platform/pkg/broker"

func topic(name string) broker.ExchangeSpec {
	return broker.ExchangeSpec{Name: name, Kind: broker.Topic, Durable: true}
}

// deadLetter is shared by every consumer so exhausted retries land in one
// place for inspection. Consumers route there by republishing, so work
// queues carry no dead-letter argument.
func deadLetter() broker.Topology {
	return broker.Topology{
		Exchanges: []broker.ExchangeSpec{topic(ExchangeDeadLetter)},
		Queues:    []broker.QueueSpec{{Name: QueueDeadLetter, Durable: true}},
		Bindings:  []broker.Binding{{Queue: QueueDeadLetter, Exchange: ExchangeDeadLetter, Pattern: "#"}},
	}
}

// queue declares a work queue with no extra arguments so it matches queues
// the other services already created.
func queue(name string) broker.QueueSpec {
	return broker.QueueSpec{Name: name, Durable: true}
}

// GatewayTopology is declared by the API gateway before it serves traffic.
func GatewayTopology() broker.Topology {
	return broker.Merge(broker.Topology{
		Exchanges: []broker.ExchangeSpec{
			topic(ExchangeEvents),
			topic(ExchangeCommands),
			topic(ExchangeOrders),
		},
		Queues: []broker.QueueSpec{
			queue(QueueGatewayNotifications),
			queue(QueueGatewayAudit),
		},
		Bindings: []broker.Binding{
			{Queue: QueueGatewayNotifications, Exchange: ExchangeEvents, Pattern: "notification.*"},
			{Queue: QueueGatewayAudit, Exchange: ExchangeEvents, Pattern: "audit.*"},
		},
	}, deadLetter())
}

// OrderWorkerTopology is declared by the order worker.
func OrderWorkerTopology() broker.Topology {
	return broker.Merge(broker.Topology{
		Exchanges: []broker.ExchangeSpec{
			topic(ExchangeOrders),
			topic(ExchangeWorkflow),
			topic(ExchangeNotifications),
		},
		Queues: []broker.QueueSpec{
			queue(QueueNewOrders),
			queue(QueueOrderUpdates),
			queue(QueueWorkflowEvents),
		},
		Bindings: []broker.Binding{
			{Queue: QueueNewOrders, Exchange: ExchangeOrders, Pattern: OrderCreated},
			{Queue: QueueOrderUpdates, Exchange: ExchangeOrders, Pattern: OrderUpdated},
			{Queue: QueueWorkflowEvents, Exchange: ExchangeWorkflow, Pattern: "workflow.*"},
		},
	}, deadLetter())
}

// NotifierTopology is declared by the notification service.
func NotifierTopology() broker.Topology {
	return broker.Merge(broker.Topology{
		Exchanges: []broker.ExchangeSpec{
			topic(ExchangeNotifications),
			topic(ExchangeEvents),
			topic(ExchangeOrders),
		},
		Queues: []broker.QueueSpec{
			queue(QueueNotifications),
			queue(QueueActivity),
		},
		Bindings: []broker.Binding{
			{Queue: QueueNotifications, Exchange: ExchangeNotifications, Pattern: "notification.*"},
			{Queue: QueueActivity, Exchange: ExchangeEvents, Pattern: "user.*"},
			{Queue: QueueActivity, Exchange: ExchangeOrders, Pattern: "order.*"},
		},
	}, deadLetter())
}
