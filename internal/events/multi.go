package events

import (
	"context"
	"errors"
)

// MultiPublisher fans every event out to several publishers. A failing
// publisher does not stop delivery to the others; their errors are joined.
type MultiPublisher struct {
	pubs []Publisher
}

// NewMultiPublisher returns a publisher over pubs, skipping nil entries.
func NewMultiPublisher(pubs ...Publisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range pubs {
		if p != nil {
			m.pubs = append(m.pubs, p)
		}
	}
	return m
}

// Len returns the number of underlying publishers.
func (m *MultiPublisher) Len() int { return len(m.pubs) }

func (m *MultiPublisher) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range m.pubs {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiPublisher) Close() error {
	var errs []error
	for _, p := range m.pubs {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
