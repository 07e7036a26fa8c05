package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Producer 消息队列生产者, 帧以 JSON 发送
type Producer interface {
	Produce(ctx context.Context, topic string, key string, data interface{}) error
	Close()
}

// NoOpProducer 未启用消息队列时使用
type NoOpProducer struct{}

func NewNoOpProducer() *NoOpProducer {
	return &NoOpProducer{}
}

func (p *NoOpProducer) Produce(ctx context.Context, topic string, key string, data interface{}) error {
	return nil
}

func (p *NoOpProducer) Close() {}

// Encode 序列化消息体
func Encode(data interface{}) ([]byte, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	return body, nil
}

// JoinTopic 拼接主题与键, sep 为 "." (AMQP) 或 "/" (MQTT)
func JoinTopic(topic, key, sep string) string {
	topic = strings.TrimSuffix(topic, sep)
	switch {
	case topic == "":
		return key
	case key == "":
		return topic
	default:
		return topic + sep + key
	}
}
