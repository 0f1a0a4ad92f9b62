package progress_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/config"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/domain"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
	"github.com/jpotterlabs/pdf2audiobook-base/internal/progress"
)

type fakeRedis struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisPublisher_PublishesJSONPerJobChannel(t *testing.T) {
	fake := &fakeRedis{}
	pub := progress.NewRedisPublisher(fake, "test:jobs")
	jobID := uuid.New()

	err := pub.Publish(context.Background(), port.ProgressEvent{
		JobID:    jobID,
		Status:   domain.JobStatusProcessing,
		Progress: 40,
	})

	require.NoError(t, err)
	assert.Equal(t, "test:jobs:"+jobID.String(), fake.channel)

	var got port.ProgressEvent
	require.NoError(t, json.Unmarshal(fake.payload, &got))
	assert.Equal(t, jobID, got.JobID)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, domain.JobStatusProcessing, got.Status)
}

func TestRedisPublisher_WrapsError(t *testing.T) {
	pub := progress.NewRedisPublisher(&fakeRedis{err: errors.New("connection refused")}, "")

	err := pub.Publish(context.Background(), port.ProgressEvent{JobID: uuid.New()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis publish")
}

func TestNewFromConfig_NoAddressIsNoop(t *testing.T) {
	pub, closeFn, err := progress.NewFromConfig(context.Background(), &config.RedisConfig{})

	require.NoError(t, err)
	assert.IsType(t, progress.NoopPublisher{}, pub)
	assert.NoError(t, closeFn())
	assert.NoError(t, pub.Publish(context.Background(), port.ProgressEvent{}))
}

type pingingRedis struct {
	fakeRedis
	pingErr error
}

func (p *pingingRedis) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if p.pingErr != nil {
		cmd.SetErr(p.pingErr)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

func TestRedisPublisher_Ping(t *testing.T) {
	assert.NoError(t, progress.NewRedisPublisher(&fakeRedis{}, "").Ping(context.Background()))
	assert.NoError(t, progress.NewRedisPublisher(&pingingRedis{}, "").Ping(context.Background()))

	down := progress.NewRedisPublisher(&pingingRedis{pingErr: errors.New("i/o timeout")}, "")
	assert.EqualError(t, down.Ping(context.Background()), "i/o timeout")
}
