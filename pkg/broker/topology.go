package broker

import (
	"context"
	"fmt"
)

// Topology is the static set of exchanges, queues and bindings a service
// relies on. Declaring it is idempotent and safe on every boot.
type Topology struct {
	Exchanges []ExchangeSpec
	Queues    []QueueSpec
	Bindings  []Binding
}

// Declare creates every entity in order: exchanges, then queues, then
// bindings.
func (t Topology) Declare(ctx context.Context, d Declarer) error {
	for _, ex := range t.Exchanges {
		if err := d.DeclareExchange(ctx, ex); err != nil {
			return fmt.Errorf("declare exchange %q: %w", ex.Name, err)
		}
	}
	for _, q := range t.Queues {
		if err := d.DeclareQueue(ctx, q); err != nil {
			return fmt.Errorf("declare queue %q: %w", q.Name, err)
		}
	}
	for _, b := range t.Bindings {
		if err := d.BindQueue(ctx, b); err != nil {
			return fmt.Errorf("bind %q to %q with %q: %w", b.Queue, b.Exchange, b.Pattern, err)
		}
	}
	return nil
}

// Merge combines topologies, keeping the first occurrence of duplicates.
func Merge(parts ...Topology) Topology {
	var out Topology
	seenEx := map[string]bool{}
	seenQ := map[string]bool{}
	seenB := map[Binding]bool{}

	for _, p := range parts {
		for _, ex := range p.Exchanges {
			if !seenEx[ex.Name] {
				seenEx[ex.Name] = true
				out.Exchanges = append(out.Exchanges, ex)
			}
		}
		for _, q := range p.Queues {
			if !seenQ[q.Name] {
				seenQ[q.Name] = true
				out.Queues = append(out.Queues, q)
			}
		}
		for _, b := range p.Bindings {
			if !seenB[b] {
				seenB[b] = true
				out.Bindings = append(out.Bindings, b)
			}
		}
	}
	return out
}

// QueueNames lists the queues declared by t.
func (t Topology) QueueNames() []string {
	names := make([]string, 0, len(t.Queues))
	for _, q := range t.Queues {
		names = append(names, q.Name)
	}
	return names
}
