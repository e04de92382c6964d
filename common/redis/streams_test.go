package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublishJSONToStream(t *testing.T) {
	client := setupMiniredis(t)
	ctx := context.Background()

	id, err := PublishJSONToStream(ctx, client, "radiation:alerts", 0, map[string]interface{}{"employee_id": "E1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := ReadRange(ctx, client, "radiation:alerts", "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, `{"employee_id":"E1"}`, msgs[0].Values["data"])
	assert.NotEmpty(t, msgs[0].Values["timestamp"])
}

func TestPublishToStreamStringifiesScalars(t *testing.T) {
	client := setupMiniredis(t)
	ctx := context.Background()

	_, err := PublishToStream(ctx, client, "s", 0, map[string]interface{}{
		"rate":  2.5,
		"count": 3,
		"ok":    true,
		"tags":  []string{"a"},
	})
	require.NoError(t, err)

	msgs, err := ReadRange(ctx, client, "s", "-", "+", 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "2.5", msgs[0].Values["rate"])
	assert.Equal(t, "3", msgs[0].Values["count"])
	assert.Equal(t, "true", msgs[0].Values["ok"])
	assert.Equal(t, `["a"]`, msgs[0].Values["tags"])
}
