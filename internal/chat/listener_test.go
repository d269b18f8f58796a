package chat_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/chat-tts-service/internal/chat"
	"github.com/book-expert/chat-tts-service/internal/pipeline"
	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	chatSubject   = "chat.messages"
	noticeSubject = "chat.notices"
)

// mockSubmitter records submitted requests.
type mockSubmitter struct {
	mu       sync.Mutex
	requests []pipeline.Request
}

func (m *mockSubmitter) Submit(_ context.Context, req pipeline.Request) pipeline.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	return pipeline.Status{Kind: pipeline.KindAccepted}
}

func (m *mockSubmitter) submitted() []pipeline.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]pipeline.Request(nil), m.requests...)
}

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	return natsConnection
}

func publishChat(t *testing.T, natsConnection *nats.Conn, username, message string) {
	t.Helper()

	data, err := json.Marshal(chat.MessageEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: "",
			EventID:    uuid.NewString(),
			UserID:     username,
			TenantID:   "",
		},
		Channel:  "streamer",
		Username: username,
		Text:     message,
	})
	require.NoError(t, err)
	require.NoError(t, natsConnection.Publish(chatSubject, data))
}

func TestListener_RoutesMessages(t *testing.T) {
	t.Parallel()

	natsConnection := createTestNatsClient(t)

	notices, err := natsConnection.SubscribeSync(noticeSubject)
	require.NoError(t, err)

	testLogger, err := logger.New(t.TempDir(), "test-log.log")
	require.NoError(t, err)

	submitter := &mockSubmitter{}
	listener := chat.NewListener(
		natsConnection,
		chatSubject,
		newTestRouter(),
		submitter,
		chat.NewNatsNotifier(natsConnection, noticeSubject, "streamer", chat.DefaultMessageLimit),
		testLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		errChan <- listener.Run(ctx)
	}()

	// Wait for the subscription before publishing.
	require.Eventually(t, func() bool {
		return natsConnection.NumSubscriptions() == 2
	}, 5*time.Second, 10*time.Millisecond)

	publishChat(t, natsConnection, "viewer1", "!tts hello there")
	publishChat(t, natsConnection, "viewer2", "just chatting")
	publishChat(t, natsConnection, "viewer3", "!tts")
	require.NoError(t, natsConnection.Publish(chatSubject, []byte("not json")))

	require.Eventually(t, func() bool { return len(submitter.submitted()) == 1 }, 5*time.Second, 10*time.Millisecond)

	request := submitter.submitted()[0]
	assert.Equal(t, "viewer1", request.Identity)
	assert.Equal(t, "hello there", request.Text)

	msg, err := notices.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var notice chat.NoticeEvent

	require.NoError(t, json.Unmarshal(msg.Data, &notice))
	assert.Equal(t, "streamer", notice.Channel)
	assert.Contains(t, notice.Message, "!tts")

	cancel()

	assert.NoError(t, <-errChan, "listener.Run should not error on graceful shutdown")
}

func TestNatsNotifier_TruncatesToLimit(t *testing.T) {
	t.Parallel()

	natsConnection := createTestNatsClient(t)

	notices, err := natsConnection.SubscribeSync(noticeSubject)
	require.NoError(t, err)

	notifier := chat.NewNatsNotifier(natsConnection, noticeSubject, "streamer", 0)

	require.NoError(t, notifier.Notify(context.Background(), strings.Repeat("я", 600)))

	msg, err := notices.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var notice chat.NoticeEvent

	require.NoError(t, json.Unmarshal(msg.Data, &notice))
	assert.Equal(t, strings.Repeat("я", chat.DefaultMessageLimit), notice.Message)
	assert.NotEmpty(t, notice.Header.EventID)
}
