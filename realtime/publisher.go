// Package realtime delivers events to live subscribers. Delivery is best
// effort and at most once; callers log failures and move on.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TopicSensorUpdates = "sensor-updates"
	TopicSensorAlerts  = "sensor-alerts"

	EventSensorData  = "sensor-data"
	EventSensorAlert = "sensor-alert"
)

type Event struct {
	Topic string `json:"topic"`
	Name  string `json:"event"`
	Data  any    `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Named is implemented by publishers that label their failures in metrics.
type Named interface {
	Name() string
}

// NameOf returns the publisher label used in logs and metrics.
func NameOf(p Publisher) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}

func encode(evt Event) ([]byte, error) {
	b, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", evt.Name, err)
	}
	return b, nil
}

// PublishError reports which publishers of a Multi failed.
type PublishError struct {
	Failed map[string]error
}

func (e *PublishError) Error() string {
	errs := make([]error, 0, len(e.Failed))
	for name, err := range e.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return errors.Join(errs...).Error()
}

// Multi fans an event out to every publisher, even when some fail.
type Multi struct {
	publishers []Publisher
}

func NewMulti(publishers ...Publisher) *Multi {
	out := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return &Multi{publishers: out}
}

func (m *Multi) Publish(ctx context.Context, evt Event) error {
	var perr *PublishError
	for _, p := range m.publishers {
		if err := p.Publish(ctx, evt); err != nil {
			if perr == nil {
				perr = &PublishError{Failed: map[string]error{}}
			}
			perr.Failed[NameOf(p)] = err
		}
	}
	if perr != nil {
		return perr
	}
	return nil
}

func (m *Multi) Len() int {
	return len(m.publishers)
}
