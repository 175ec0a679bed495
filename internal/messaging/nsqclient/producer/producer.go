package producer

import (
	"fmt"

	"github.com/nsqio/go-nsq"
)

// MessageProducerConfig defines NSQ publish configuration
type MessageProducerConfig struct {
	Host  string `mapstructure:"host"`
	Topic string `mapstructure:"topic"`
}
type messageProducer struct {
	producer *nsq.Producer
	topic    string
}

func (p *messageProducer) Stop() {
	p.producer.Stop()
}

func (p *messageProducer) Publish(body []byte) error {
	if err := p.producer.Publish(p.topic, body); err != nil {
		return fmt.Errorf("couldn't publish message to topic %s, %w", p.topic, err)
	}
	return nil
}

// New returns producer if infra is ok.
func New(config *MessageProducerConfig) (*messageProducer, error) {
	msgProducer := &messageProducer{
		topic: config.Topic,
	}

	producer, err := nsq.NewProducer(config.Host, nsq.NewConfig())
	if err != nil {
		return nil, err
	}
	if err := producer.Ping(); err != nil {
		return nil, fmt.Errorf("couldn't reach nsqd at %s, %w", config.Host, err)
	}
	msgProducer.producer = producer
	return msgProducer, nil
}
