package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type attributedPayload struct {
	Kind string `json:"kind"`
}

func (p attributedPayload) Attributes() map[string]string {
	return map[string]string{"event_type": p.Kind}
}

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublisherPublishesJSONWithAttributes(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)
	_, err := client.CreateTopic(ctx, "entries")
	require.NoError(t, err)

	pub := New(client)
	defer pub.Close()

	id, err := pub.Publish(ctx, "entries", attributedPayload{Kind: "entry.logged"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "entry.logged", msgs[0].Attributes["event_type"])

	var decoded attributedPayload
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	require.Equal(t, "entry.logged", decoded.Kind)
}

func TestPublisherRejectsMissingTopic(t *testing.T) {
	client, _ := newTestClient(t)
	pub := New(client)
	defer pub.Close()

	_, err := pub.Publish(context.Background(), "", map[string]string{"k": "v"})
	require.Error(t, err)
}

func TestPublisherWithoutClient(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "entries", "payload")
	require.Error(t, err)
}

func TestPublisherUnknownTopicFails(t *testing.T) {
	client, _ := newTestClient(t)
	pub := New(client)
	defer pub.Close()

	_, err := pub.Publish(context.Background(), "missing", "payload")
	require.Error(t, err)
}
