package memory

import (
	"github.com/swiftlogistics/platform/pkg/broker"
)

type subscription struct {
	b        *Broker
	queue    string
	tag      string
	prefetch int

	out  chan broker.Delivery
	done chan struct{}

	// Guarded by b.mu.
	ended   bool
	unacked map[uint64]broker.Message
}

func (s *subscription) Deliveries() <-chan broker.Delivery { return s.out }

// Cancel stops new deliveries. Messages already handed out stay with the
// subscription and can still be settled.
func (s *subscription) Cancel() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	s.endLocked()
	if len(s.unacked) == 0 {
		delete(s.b.subs, s)
	}
	return nil
}

func (s *subscription) endLocked() {
	if !s.ended {
		s.ended = true
		close(s.done)
	}
}

// pump moves messages from the queue to the delivery channel while the
// prefetch window has room.
func (s *subscription) pump() {
	defer close(s.out)
	b := s.b

	for {
		b.mu.Lock()
		if s.ended {
			b.mu.Unlock()
			return
		}
		q, ok := b.queues[s.queue]
		if !ok {
			b.mu.Unlock()
			return
		}

		if len(s.unacked) < s.prefetch && len(q.ready) > 0 {
			msg := q.ready[0]
			q.ready = q.ready[1:]
			b.nextTag++
			tag := b.nextTag
			s.unacked[tag] = msg
			b.mu.Unlock()

			select {
			case s.out <- broker.NewDelivery(msg, &acker{s: s, tag: tag}):
				continue
			case <-s.done:
				// Never handed out, so it goes back as it was.
				b.mu.Lock()
				if m, ok := s.unacked[tag]; ok {
					delete(s.unacked, tag)
					if q, ok := b.queues[s.queue]; ok {
						q.ready = append([]broker.Message{m}, q.ready...)
						b.notifyLocked()
					}
				}
				b.mu.Unlock()
				return
			}
		}

		wait := b.changed
		b.mu.Unlock()

		select {
		case <-wait:
		case <-s.done:
			return
		}
	}
}

type acker struct {
	s   *subscription
	tag uint64
}

func (a *acker) settle() (broker.Message, *queue, error) {
	s := a.s
	msg, ok := s.unacked[a.tag]
	if !ok {
		return broker.Message{}, nil, broker.ErrChannelUnavailable
	}
	delete(s.unacked, a.tag)
	if s.ended && len(s.unacked) == 0 {
		delete(s.b.subs, s)
	}
	return msg, s.b.queues[s.queue], nil
}

func (a *acker) Ack() error {
	b := a.s.b
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, _, err := a.settle(); err != nil {
		return err
	}
	b.notifyLocked()
	return nil
}

func (a *acker) Nack(requeue bool) error {
	b := a.s.b
	b.mu.Lock()
	defer b.mu.Unlock()

	msg, q, err := a.settle()
	if err != nil {
		return err
	}
	if q != nil {
		if requeue {
			msg.Redelivered = true
			q.ready = append([]broker.Message{msg}, q.ready...)
		} else {
			b.deadLetterLocked(q, msg)
		}
	}
	b.notifyLocked()
	return nil
}
