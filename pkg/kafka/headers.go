package kafka

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// TopicPrefix namespaces every topic this service writes.
const TopicPrefix = "addressbook"

// Topic returns "addressbook.<entity>.<action>".
func Topic(entity, action string) string {
	return strings.Join([]string{TopicPrefix, entity, action}, ".")
}

// HeaderCarrier exposes a message's headers as a
// propagation.TextMapCarrier.
type HeaderCarrier struct {
	msg *kafka.Message
}

func NewHeaderCarrier(msg *kafka.Message) HeaderCarrier {
	return HeaderCarrier{msg: msg}
}

func (c HeaderCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Set overwrites an existing header in place so keys stay unique.
func (c HeaderCarrier) Set(key, value string) {
	for i := range c.msg.Headers {
		if c.msg.Headers[i].Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, len(c.msg.Headers))
	for i, h := range c.msg.Headers {
		keys[i] = h.Key
	}
	return keys
}
