package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"

	"github.com/KeviinDCV/NotionK4S/core"
)

// Broker is an in-process Feed on watermill's gochannel pub/sub.
// It serves both modes: in demo mode it is the only transport; in connected
// mode the API process publishes into it after each gateway mutation so that
// every local store instance converges.
type Broker struct {
	pubsub *gochannel.GoChannel
}

var _ Feed = (*Broker)(nil)

func NewBroker(logger core.Logger) *Broker {
	return &Broker{
		pubsub: gochannel.NewGoChannel(gochannel.Config{}, loggerAdapter{logger: logger}),
	}
}

func (b *Broker) Publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshaling feed event")
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return errors.Wrap(b.pubsub.Publish(Topic(ev.Family, ev.Scope), msg), "publishing feed event")
}

func (b *Broker) Subscribe(family, scope string, h Handlers) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.pubsub.Subscribe(ctx, Topic(family, scope))
	if err != nil {
		// teardown stays valid even when the handshake failed
		return cancel, errors.Wrap(err, "subscribing to feed")
	}

	go func() {
		for msg := range ch {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				msg.Ack()
				continue
			}
			switch ev.Op {
			case OpInsert:
				if h.OnInsert != nil {
					h.OnInsert(ev)
				}
			case OpDelete:
				if h.OnDelete != nil {
					h.OnDelete(ev)
				}
			}
			msg.Ack()
		}
	}()
	return cancel, nil
}

func (b *Broker) Close() error {
	return b.pubsub.Close()
}

// loggerAdapter bridges watermill's logging onto core.Logger.
type loggerAdapter struct {
	logger core.Logger
	fields watermill.LogFields
}

var _ watermill.LoggerAdapter = loggerAdapter{}

func (l loggerAdapter) print(level string, msg string, err error, fields watermill.LogFields) {
	if l.logger == nil {
		return
	}
	all := l.fields.Add(fields)
	args := make([]interface{}, 0, 2)
	if err != nil {
		args = append(args, err)
	}
	if len(all) > 0 {
		args = append(args, map[string]interface{}(all))
	}
	switch level {
	case "error":
		l.logger.Error(fmt.Sprintf("feed: %s", msg), args...)
	case "info":
		l.logger.Info(fmt.Sprintf("feed: %s", msg), args...)
	default:
		l.logger.Debug(fmt.Sprintf("feed: %s", msg), args...)
	}
}

func (l loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.print("error", msg, err, fields)
}

func (l loggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.print("info", msg, nil, fields)
}

func (l loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.print("debug", msg, nil, fields)
}

func (l loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.print("trace", msg, nil, fields)
}

func (l loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return loggerAdapter{logger: l.logger, fields: l.fields.Add(fields)}
}
