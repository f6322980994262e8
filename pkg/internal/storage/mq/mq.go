// Package mq 基于 Watermill 提供统一的消息队列客户端.
// 通过工厂注册不同实现：nats（可选 JetStream）、redis（pub/sub）、memory（进程内 gochannel）.
//
// 使用示例：
//
//	client, err := mq.New(ctx, cfg.MQ, mq.WithMetrics(metrics.GetRegistry()))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	router, _ := client.NewRouter()
//	router.AddNoPublisherHandler("verify", queue.TopicUploadRequested, client.Subscriber(), handler)
//	go router.Run(ctx)
//
//	_ = client.Publish(ctx, queue.TopicUploadRequested, msg)
package mq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/fastlink/pkg/configs"
	nlog "github.com/yeisme/fastlink/pkg/log"
)

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var factories = map[configs.MQType]Factory{}

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// RegisteredTypes 返回已注册的 MQ 类型.
func RegisteredTypes() []string {
	out := make([]string, 0, len(factories))
	for t := range factories {
		out = append(out, string(t))
	}

	sort.Strings(out)

	return out
}

// Client 封装 watermill Publisher 与 Subscriber.
type Client struct {
	typ            configs.MQType
	publisher      message.Publisher
	subscriber     message.Subscriber
	logger         watermill.LoggerAdapter
	metricsBuilder *metrics.PrometheusMetricsBuilder
}

// Option 客户端选项.
type Option func(*clientOptions)

type clientOptions struct {
	registerer prometheus.Registerer
}

// WithMetrics 在 registerer 上注册 watermill 的发布/订阅/路由指标.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *clientOptions) {
		o.registerer = reg
	}
}

// New 按配置创建消息队列客户端.
func New(ctx context.Context, cfg configs.MQConfig, opts ...Option) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	logger := NewLogger(nlog.Logger())

	pub, sub, err := factory(ctx, &cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	client := &Client{typ: cfg.Type, publisher: pub, subscriber: sub, logger: logger}

	if o.registerer != nil {
		builder := metrics.NewPrometheusMetricsBuilder(o.registerer, configs.AppName, "mq")

		if client.publisher, err = builder.DecoratePublisher(pub); err != nil {
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}

		if client.subscriber, err = builder.DecorateSubscriber(sub); err != nil {
			return nil, fmt.Errorf("decorate subscriber with metrics: %w", err)
		}

		client.metricsBuilder = &builder
	}

	nlog.Logger().Info().Str("type", string(cfg.Type)).Msg("mq client initialized")

	return client, nil
}

// NewFromPubSub 用现成的 Publisher/Subscriber 构造客户端，主要用于测试.
func NewFromPubSub(pub message.Publisher, sub message.Subscriber) *Client {
	return &Client{typ: "custom", publisher: pub, subscriber: sub, logger: NewLogger(nlog.Logger())}
}

// Type 返回 MQ 类型.
func (c *Client) Type() configs.MQType { return c.typ }

// Publisher 返回底层 Publisher.
func (c *Client) Publisher() message.Publisher { return c.publisher }

// Subscriber 返回底层 Subscriber.
func (c *Client) Subscriber() message.Subscriber { return c.subscriber }

// Logger 返回 watermill 日志适配器.
func (c *Client) Logger() watermill.LoggerAdapter { return c.logger }

// NewRouter 创建带恢复与重试中间件的 Router.
// Nack 的消息按指数退避重试 3 次.
func (c *Client) NewRouter() (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
			Logger:          c.logger,
		}.Middleware,
	)

	if c.metricsBuilder != nil {
		c.metricsBuilder.AddPrometheusRouterMetrics(router)
	}

	return router, nil
}

// Publish 发布消息.
func (c *Client) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return fmt.Errorf("mq publisher not initialized")
	}

	return c.publisher.Publish(topic, msgs...)
}

// Subscribe 订阅主题.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, fmt.Errorf("mq subscriber not initialized")
	}

	return c.subscriber.Subscribe(ctx, topic)
}

// Close 关闭资源. memory 实现中 Publisher 与 Subscriber 是同一个对象，只关闭一次.
func (c *Client) Close() error {
	var errs []error

	if c.publisher != nil {
		errs = append(errs, c.publisher.Close())
	}

	if c.subscriber != nil && any(c.subscriber) != any(c.publisher) {
		errs = append(errs, c.subscriber.Close())
	}

	return errors.Join(errs...)
}
