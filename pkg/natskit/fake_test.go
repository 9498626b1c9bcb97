package natskit

import (
	"sync"

	"github.com/nats-io/nats.go"
)

type publication struct {
	subject string
	data    []byte
}

// fakeJetStream satisfies the jetStream interface in place of a server.
type fakeJetStream struct {
	mu sync.Mutex

	streams map[string]nats.StreamConfig
	chans   map[string]chan *nats.Msg

	infoCalls      int
	addCalls       int
	updateCalls    int
	subscribeCalls int

	infoErr      error
	addErr       error
	updateErr    error
	subscribeErr map[string]error

	published []publication
}

func newFakeJetStream() *fakeJetStream {
	return &fakeJetStream{
		streams:      make(map[string]nats.StreamConfig),
		chans:        make(map[string]chan *nats.Msg),
		subscribeErr: make(map[string]error),
	}
}

func (f *fakeJetStream) addStream(name string, subjects ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams[name] = nats.StreamConfig{Name: name, Subjects: subjects}
}

func (f *fakeJetStream) StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	cfg, ok := f.streams[stream]
	if !ok {
		return nil, nats.ErrStreamNotFound
	}
	return &nats.StreamInfo{Config: cfg}, nil
}

func (f *fakeJetStream) AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.streams[cfg.Name] = *cfg
	return &nats.StreamInfo{Config: *cfg}, nil
}

func (f *fakeJetStream) UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.streams[cfg.Name] = *cfg
	return &nats.StreamInfo{Config: *cfg}, nil
}

func (f *fakeJetStream) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publication{subject: subj, data: data})
	return &nats.PubAck{}, nil
}

func (f *fakeJetStream) ChanSubscribe(subj string, ch chan *nats.Msg, opts ...nats.SubOpt) (*nats.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCalls++
	if err := f.subscribeErr[subj]; err != nil {
		return nil, err
	}
	f.chans[subj] = ch
	return &nats.Subscription{}, nil
}

func (f *fakeJetStream) deliveries(subj string) chan *nats.Msg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chans[subj]
}

func (f *fakeJetStream) counts() (info, add, update, subscribe int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infoCalls, f.addCalls, f.updateCalls, f.subscribeCalls
}

func (f *fakeJetStream) publications() []publication {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publication, len(f.published))
	copy(out, f.published)
	return out
}

var _ jetStream = (*fakeJetStream)(nil)
