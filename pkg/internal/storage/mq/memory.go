package mq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/fastlink/pkg/configs"
)

// DefaultMemoryBuffer 每个订阅者的输出缓冲.
const DefaultMemoryBuffer = 256

func init() {
	RegisterFactory(configs.MQTypeMemory, memoryFactory)
}

// memoryFactory 进程内 gochannel，订阅必须先于发布，否则消息被丢弃.
func memoryFactory(
	_ context.Context,
	_ *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            DefaultMemoryBuffer,
		BlockPublishUntilSubscriberAck: false,
	}, logger)

	return ch, ch, nil
}
