//go:build integration

package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idaholab/Deep-Lynx-sub010/pkg/crypto"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/models"
	"github.com/idaholab/Deep-Lynx-sub010/pkg/testhelpers"
)

func TestDataTargetLock_ExclusiveUntilReleased(t *testing.T) {
	r := testhelpers.GetTestRedis(t)

	svc := &dataTargetService{
		redis:   r.Client,
		lockTTL: 30 * time.Second,
		logger:  zap.NewNop(),
	}

	id := uuid.New()
	require.True(t, svc.acquireLock(context.Background(), id))
	assert.False(t, svc.acquireLock(context.Background(), id))

	svc.releaseLock(context.Background(), id)
	assert.True(t, svc.acquireLock(context.Background(), id))
}

func TestDataTargetService_PollCycleReleasesLock(t *testing.T) {
	r := testhelpers.GetTestRedis(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := newMockDataTargetRepo()
	runner := &staticRunner{payload: json.RawMessage(`{"nodes":[]}`)}
	encryptor, err := crypto.NewCredentialEncryptor("test-encryption-key")
	require.NoError(t, err)
	svc := NewDataTargetService(repo, runner, encryptor, r.Client, time.Second, 30*time.Second, zap.NewNop())

	target, err := svc.Create(context.Background(), &models.DataTarget{
		ContainerID: uuid.New(),
		Name:        "sink",
		Config:      httpTargetConfig(t, server.URL, nil),
	})
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(context.Background(), target.ID, true))

	svc.PollOnce(context.Background())
	assert.Equal(t, 1, runner.calls)

	// the lock does not linger until its TTL
	held, err := r.Client.Exists(context.Background(), lockKey(target.ID)).Result()
	require.NoError(t, err)
	assert.Zero(t, held)
}
