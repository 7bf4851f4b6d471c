// Package events provides an optional Kafka publisher for committed-parcel
// events, so downstream consumers can follow what a run wrote without
// polling the output layer.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
)

type CommitEvent struct {
	Reference string    `json:"reference"`
	Admin     string    `json:"admin"`
	Section   string    `json:"section,omitempty"`
	Sheet     string    `json:"sheet"`
	Parcel    string    `json:"parcel"`
	AreaSqm   float64   `json:"area_sqm"`
	TS        time.Time `json:"ts"`
}

type Publisher struct {
	topic   string
	events  chan CommitEvent
	prod    sarama.AsyncProducer
	stopped chan struct{}
}

func NewPublisher(brokers []string, topic string, queueSize int) (*Publisher, error) {
	if queueSize <= 0 {
		queueSize = 256
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}

	p := &Publisher{
		topic:   topic,
		events:  make(chan CommitEvent, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				log.Printf("events: marshal error: %v", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Reference),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				log.Printf("events: producer error: %v", err)
			}
		}
	}()

	return p, nil
}

// PublishCommit enqueues the event; a full queue drops it rather than
// blocking the write path.
func (p *Publisher) PublishCommit(f model.ParcelFeature) {
	ev := CommitEvent{
		Reference: f.NationalReference,
		Admin:     f.Admin,
		Section:   f.Section,
		Sheet:     f.Sheet,
		Parcel:    f.Parcel,
		AreaSqm:   f.AreaSqm,
		TS:        time.Now().UTC(),
	}
	select {
	case p.events <- ev:
	default:
	}
}

func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	return nil
}
