package queue

import "github.com/ThreeDotsLabs/watermill/message"

type capturePublisher struct {
	topics []string
	msgs   []*message.Message
}

func (p *capturePublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, m := range msgs {
		p.topics = append(p.topics, topic)
		p.msgs = append(p.msgs, m)
	}

	return nil
}

func (p *capturePublisher) Close() error { return nil }
