package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.Publish(context.Background(), []byte(`{}`)))
	assert.NoError(t, n.Subscribe(context.Background(), func([]byte) { t.Fatal("unexpected event") }))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.Publish(context.Background(), []byte(`{}`)))
}

func TestNotifier_RejectsNonJSON(t *testing.T) {
	_, rdb := newTestRedis(t)
	err := NewNotifier(rdb).Publish(context.Background(), []byte("not json"))
	assert.Error(t, err)
}

func TestNotifier_DeliversAcrossReplicasOnly(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := NewNotifier(rdb)
	remote := NewNotifier(rdb)
	require.NotEqual(t, local.Origin(), remote.Origin())

	received := make(chan string, 4)
	require.NoError(t, local.Subscribe(ctx, func(event []byte) { received <- string(event) }))

	require.NoError(t, local.Publish(ctx, []byte(`{"type":"own"}`)))
	require.NoError(t, remote.Publish(ctx, []byte(`{"type":"report_deleted","payload":{"id":3}}`)))

	select {
	case got := <-received:
		assert.JSONEq(t, `{"type":"report_deleted","payload":{"id":3}}`, got)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("remote event not delivered")
	}
	assert.Never(t, func() bool { return len(received) > 0 }, 10*testPollInterval, testPollInterval)
}

func TestHub_StartWiringForwardsRemoteEvents(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(rdb)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	c, err := hub.Register(1, nil)
	require.NoError(t, err)

	require.NoError(t, hub.StartWiring(ctx, NewNotifier(rdb)))
	require.NoError(t, NewNotifier(rdb).Publish(ctx, []byte(`{"type":"report_created"}`)))

	assert.Eventually(t, func() bool { return len(c.Send) == 1 }, testEventuallyTimeout, testPollInterval)
	assert.JSONEq(t, `{"type":"report_created"}`, string(<-c.Send))
}
