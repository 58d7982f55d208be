// Package status publishes runtime events of the host MCU to an MQTT
// broker.
package status

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// EventQueueSize is the number of events buffered for the publisher.
const EventQueueSize = 16

// Reporter publishes events under <prefix><id>/status and <id>/events.
type Reporter struct {
	ID        string
	Publisher Publisher

	queue  *Queue
	events chan Event
	now    func() time.Time
}

// NewReporter creates a Reporter publishing through pub.
func NewReporter(id string, pub Publisher) *Reporter {
	return &Reporter{
		ID:        id,
		Publisher: pub,
		events:    make(chan Event, EventQueueSize),
		now:       time.Now,
	}
}

// NewReporterFromURL creates a Reporter connected to the broker at brokerURL.
func NewReporterFromURL(brokerURL, id string) (*Reporter, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.SetClientID("hostmcu:" + id)
	}
	offline := &Event{Kind: KindOffline}
	if payload, err := offline.Marshal(); err == nil {
		opts.SetBinaryWill(topicPrefix+id+"/status", payload, 1, true)
	}
	q := NewQueue(opts, topicPrefix)
	r := NewReporter(id, q)
	r.queue = q
	q.OnConnect = func(*Queue) { r.publish(Event{Kind: KindOnline}) }
	return r, nil
}

// Post queues an event without blocking. Events are dropped when the
// queue is full.
func (r *Reporter) Post(ev Event) {
	select {
	case r.events <- ev:
	default:
		glog.Warningf("status: drop %s event", ev.Kind)
	}
}

func (r *Reporter) topic(ev *Event) string {
	switch ev.Kind {
	case KindOnline, KindOffline, KindShutdown:
		return r.ID + "/status"
	}
	return r.ID + "/events"
}

func (r *Reporter) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = r.now()
	}
	payload, err := ev.Marshal()
	if err != nil {
		glog.Errorf("status: encode %s: %v", ev.Kind, err)
		return
	}
	if err = r.Publisher.Pub(r.topic(&ev), payload, ev.Kind != KindStats); err != nil {
		glog.Errorf("status: publish %s: %v", ev.Kind, err)
	}
}

// Run publishes queued events until ctx is done.
func (r *Reporter) Run(ctx context.Context) error {
	if r.queue != nil {
		if token := r.queue.Connect(); token.Wait() && token.Error() != nil {
			glog.Warningf("status: connect: %v", token.Error())
		}
		defer r.queue.Close()
	}
	for {
		select {
		case ev := <-r.events:
			r.publish(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-r.events:
					r.publish(ev)
				default:
					if r.queue != nil {
						r.publish(Event{Kind: KindOffline})
					}
					return nil
				}
			}
		}
	}
}
