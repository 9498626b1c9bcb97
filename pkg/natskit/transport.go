package natskit

import "github.com/nats-io/nats.go"

// jetStream is the subset of nats.JetStreamContext the broker consumes:
// stream administration, publish, and durable subscribe. Tests substitute a
// fake; production uses the context returned by the connection.
type jetStream interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
	ChanSubscribe(subj string, ch chan *nats.Msg, opts ...nats.SubOpt) (*nats.Subscription, error)
}

var _ jetStream = (nats.JetStreamContext)(nil)

func retentionPolicy(s string) nats.RetentionPolicy {
	switch s {
	case "interest":
		return nats.InterestPolicy
	case "workqueue":
		return nats.WorkQueuePolicy
	default:
		return nats.LimitsPolicy
	}
}

func storageType(s string) nats.StorageType {
	if s == "memory" {
		return nats.MemoryStorage
	}
	return nats.FileStorage
}
