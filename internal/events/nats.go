package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// HeaderSource carries the reporter address on NATS messages so consumers
// can filter by device without decoding the payload.
const HeaderSource = "Motion-Source"

// connectNATS dials url with the options shared by relay publishers and
// watchers: unlimited reconnects and slog-reported connection changes.
// Caller options are applied last and win.
func connectNATS(url, name string, opts ...nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "name", name, "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "name", name, "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes relay events on NATS subjects named after their
// topic (motion.sample.received, motion.reporter.idle, ...). Payloads are the
// bare event JSON.
type NATSPublisher struct {
	conn   *nats.Conn
	closed chan struct{}
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	closed := make(chan struct{})
	opts = append(opts, nats.ClosedHandler(func(*nats.Conn) { close(closed) }))
	nc, err := connectNATS(url, "motionrelay", opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc, closed: closed}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	msg := nats.NewMsg(topic)
	msg.Data = data
	if src := EventSource(event); src != "" {
		msg.Header.Set(HeaderSource, src)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Close drains the connection so buffered samples reach the server, and
// waits for it to close.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}
		p.conn.Close()
		return fmt.Errorf("draining NATS connection: %w", err)
	}
	select {
	case <-p.closed:
	case <-time.After(5 * time.Second):
		p.conn.Close()
	}
	return nil
}

// NATSSubscriber receives relay events from NATS.
type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connectNATS(url, "motionrelay-watch", opts...)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe delivers messages on topic (NATS wildcards such as "motion.>"
// are allowed) until ctx is done, then closes the channel. Messages arriving
// while the consumer is behind are dropped.
func (s *NATSSubscriber) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	raw := make(chan *nats.Msg, 64)
	sub, err := s.conn.ChanSubscribe(topic, raw)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// The subscription must reach the server before we return, or messages
	// published right after on another connection are missed.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flushing subscription: %w", err)
	}

	out := make(chan Message, cap(raw))
	go func() {
		defer close(out)
		defer sub.Unsubscribe() //nolint:errcheck
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-raw:
				msg := Message{Topic: m.Subject, Source: m.Header.Get(HeaderSource), Data: m.Data}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
