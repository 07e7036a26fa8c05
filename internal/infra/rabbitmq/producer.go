package rabbitmq

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"bmschain-logger/internal/config"
	"bmschain-logger/internal/infra/mq"
)

// FrameProducer 将帧发布到 topic 类型的交换机, 路由键形如 <routing_key>.chain0.dev1。
// 连接在后台建立并自动重连, 未连接期间 Produce 返回错误。
type FrameProducer struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	cfg        config.RabbitMQConfig
	logger     *zap.Logger
	mu         sync.Mutex
	isClosed   bool
	reconnectC chan struct{}
	closeC     chan struct{}
}

var _ mq.Producer = (*FrameProducer)(nil)

func NewFrameProducer(cfg config.RabbitMQConfig, logger *zap.Logger) *FrameProducer {
	p := &FrameProducer{
		cfg:        cfg,
		logger:     logger,
		reconnectC: make(chan struct{}, 1),
		closeC:     make(chan struct{}),
	}

	go func() {
		p.logger.Info("Attempting initial RabbitMQ connection", zap.String("url", maskURL(connURL(cfg))))
		if err := p.connect(); err != nil {
			p.logger.Warn("Initial RabbitMQ connection failed (will retry)", zap.Error(err))
			p.signalReconnect()
		}
	}()
	go p.handleReconnect()

	return p
}

// connURL 将 virtual_host 合并进连接 URL, "/" 开头的 vhost 转义为 %2f
func connURL(cfg config.RabbitMQConfig) string {
	u := cfg.URL
	if cfg.VirtualHost == "" {
		return u
	}
	vhost := cfg.VirtualHost
	if strings.HasPrefix(vhost, "/") {
		vhost = "%2f" + vhost[1:]
	}

	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return strings.TrimSuffix(u, "/") + "/" + vhost
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host + "/" + vhost
}

func maskURL(u string) string {
	if uri, err := amqp.ParseURI(u); err == nil {
		uri.Password = "******"
		return uri.String()
	}
	return u
}

func (p *FrameProducer) connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isClosed {
		return nil
	}

	conn, err := amqp.Dial(connURL(p.cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	// 声明交换机 (幂等)
	if err := ch.ExchangeDeclare(p.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if p.cfg.QueueName != "" {
		if _, err := ch.QueueDeclare(p.cfg.QueueName, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("failed to declare queue: %w", err)
		}
		// 绑定所有设备的帧
		binding := mq.JoinTopic(p.cfg.RoutingKey, "#", ".")
		if err := ch.QueueBind(p.cfg.QueueName, binding, p.cfg.Exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("failed to bind queue: %w", err)
		}
		p.logger.Debug("RabbitMQ queue bound",
			zap.String("queue", p.cfg.QueueName),
			zap.String("exchange", p.cfg.Exchange),
			zap.String("binding", binding))
	}

	p.conn = conn
	p.ch = ch

	go func() {
		<-conn.NotifyClose(make(chan *amqp.Error, 1))
		p.signalReconnect()
	}()

	p.logger.Info("Connected to RabbitMQ", zap.String("exchange", p.cfg.Exchange))
	return nil
}

func (p *FrameProducer) signalReconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isClosed {
		return
	}
	select {
	case p.reconnectC <- struct{}{}:
	default:
	}
}

func (p *FrameProducer) handleReconnect() {
	for {
		select {
		case <-p.closeC:
			return
		case <-p.reconnectC:
		}

		p.logger.Warn("RabbitMQ connection lost, attempting to reconnect...")
		for {
			err := p.connect()
			if err == nil {
				break
			}
			p.logger.Error("Failed to reconnect to RabbitMQ", zap.Error(err))
			select {
			case <-p.closeC:
				return
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// routingKey 优先使用配置的 routing_key 作为前缀, 否则使用 topic
func (p *FrameProducer) routingKey(topic, key string) string {
	prefix := p.cfg.RoutingKey
	if prefix == "" {
		prefix = topic
	}
	return mq.JoinTopic(prefix, key, ".")
}

func (p *FrameProducer) Produce(ctx context.Context, topic string, key string, data interface{}) error {
	p.mu.Lock()
	if p.isClosed {
		p.mu.Unlock()
		return fmt.Errorf("connection is closed")
	}
	if p.ch == nil || p.ch.IsClosed() {
		p.mu.Unlock()
		p.signalReconnect()
		return fmt.Errorf("RabbitMQ not connected")
	}
	ch := p.ch
	p.mu.Unlock()

	body, err := mq.Encode(data)
	if err != nil {
		return err
	}

	rk := p.routingKey(topic, key)
	err = ch.PublishWithContext(ctx, p.cfg.Exchange, rk, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("Published message to RabbitMQ", zap.String("exchange", p.cfg.Exchange), zap.String("routing_key", rk))
	return nil
}

func (p *FrameProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isClosed {
		return
	}
	p.isClosed = true
	close(p.closeC)
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
