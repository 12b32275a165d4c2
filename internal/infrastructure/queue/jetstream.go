// Package queue implements the worker pipeline's queue transport over NATS
// JetStream.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const connectTimeout = 5 * time.Second

// StreamName is the single JetStream stream backing every queue message
// type; per-type, per-group ordering is achieved with one subject per
// (type, groupKey) pair within it.
const StreamName = "REFUND_QUEUE"

// subjectPrefix namespaces every subject this stream owns.
const subjectPrefix = "refund.queue"

// Config configures the JetStream connection and stream retention.
type Config struct {
	URL      string
	MaxAge   time.Duration
	Replicas int
}

// JetStream owns the NATS connection and the stream handle shared by the
// Publisher and Consumer built over it.
type JetStream struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect dials NATS, opens JetStream, and ensures StreamName exists
// covering every subject under subjectPrefix.
func Connect(cfg Config) (*JetStream, error) {
	nc, err := nats.Connect(
		cfg.URL,
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(10),
	)
	if err != nil {
		return nil, fmt.Errorf("queue: nats.Connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queue: jetstream.New: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	streamCfg := jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ".>"},
		MaxAge:    cfg.MaxAge,
		Replicas:  cfg.Replicas,
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	}
	if _, err := js.CreateStream(ctx, streamCfg); err != nil {
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			nc.Close()
			return nil, fmt.Errorf("queue: CreateStream: %w", err)
		}
	}

	return &JetStream{nc: nc, js: js}, nil
}

// Close tears down the NATS connection.
func (j *JetStream) Close() {
	if j.nc != nil {
		j.nc.Close()
	}
}

// subject maps a (messageType, groupKey) pair onto the subject that gives
// it per-group FIFO ordering: every message sharing a type and group key
// lands on the same subject, and a single consumer processing subjects
// sequentially never reorders within a group.
func subject(messageType, groupKey string) string {
	if groupKey == "" {
		groupKey = "_"
	}
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, messageType, groupKey)
}
