package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatermillMessage_KeyBecomesUUID(t *testing.T) {
	msg, err := NewWatermillMessage(TopicUploadFailed,
		UploadFailedPayload{PendingID: "p1", Reason: "timeout"},
		WithKey("p1:terminal"), WithProducer("test"))
	require.NoError(t, err)

	assert.Equal(t, "p1:terminal", msg.UUID)
	assert.Equal(t, TopicUploadFailed, msg.Metadata.Get("topic"))
	assert.Equal(t, "test", msg.Metadata.Get("producer"))
	assert.Equal(t, PayloadVersionV1, msg.Metadata.Get("version"))

	env, err := ParseUploadFailed(msg)
	require.NoError(t, err)
	assert.Equal(t, "p1", env.Payload.PendingID)
	assert.Equal(t, "timeout", env.Payload.Reason)
	assert.Equal(t, "p1:terminal", env.Header.Key)
}

func TestNewWatermillMessage_RandomUUIDWithoutKey(t *testing.T) {
	a, err := NewWatermillMessage(TopicObjectDeleted, ObjectDeletedPayload{ObjectID: "x"})
	require.NoError(t, err)

	b, err := NewWatermillMessage(TopicObjectDeleted, ObjectDeletedPayload{ObjectID: "x"})
	require.NoError(t, err)

	assert.NotEmpty(t, a.UUID)
	assert.NotEqual(t, a.UUID, b.UUID)
}

func TestTerminalEventsShareKey(t *testing.T) {
	pub := &capturePublisher{}

	require.NoError(t, PublishUploadCompleted(pub, UploadCompletedPayload{PendingID: "p2"}))
	require.NoError(t, PublishUploadFailed(pub, UploadFailedPayload{PendingID: "p2", Reason: "x"}))

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, pub.msgs[0].UUID, pub.msgs[1].UUID)
	assert.Equal(t, []string{TopicUploadCompleted, TopicUploadFailed}, pub.topics)
}

func TestAllTopics(t *testing.T) {
	assert.ElementsMatch(t, []string{
		TopicUploadRequested, TopicUploadCompleted, TopicUploadFailed,
		TopicObjectDeleted, TopicObjectAccessed,
	}, AllTopics())
}
