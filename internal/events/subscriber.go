package events

import (
	"context"
	"encoding/json"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// Message is one event delivered by a Subscriber.
type Message struct {
	Topic  string
	Source string // reporter address, when the transport carries it
	Data   []byte
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers messages on topic until ctx is done, then closes
	// the returned channel.
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
	Close() error
}

// Readings subscribes to received samples and decodes them, keeping only
// readings from source when it is non-empty. Undecodable payloads are
// skipped.
func Readings(ctx context.Context, sub Subscriber, source string) (<-chan *model.Reading, error) {
	msgs, err := sub.Subscribe(ctx, TopicSampleReceived)
	if err != nil {
		return nil, err
	}
	out := make(chan *model.Reading, cap(msgs))
	go func() {
		defer close(out)
		for msg := range msgs {
			if source != "" && msg.Source != "" && msg.Source != source {
				continue
			}
			var ev SampleReceived
			if err := json.Unmarshal(msg.Data, &ev); err != nil || ev.Reading == nil {
				continue
			}
			if source != "" && ev.Reading.Source != source {
				continue
			}
			select {
			case out <- ev.Reading:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
