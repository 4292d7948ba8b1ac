package vectorstore

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfig_ApplyDefaults(t *testing.T) {
	config := QdrantConfig{VectorSize: 1536}
	config.ApplyDefaults()

	assert.Equal(t, "localhost", config.Host)
	assert.Equal(t, 6334, config.Port)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, time.Second, config.RetryBackoff)
	assert.Equal(t, 50*1024*1024, config.MaxMessageSize)
}

func TestQdrantConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  QdrantConfig
		wantErr bool
	}{
		{
			name:   "valid",
			config: QdrantConfig{Host: "localhost", Port: 6334, VectorSize: 1536},
		},
		{
			name:    "missing host",
			config:  QdrantConfig{Port: 6334, VectorSize: 1536},
			wantErr: true,
		},
		{
			name:    "invalid port",
			config:  QdrantConfig{Host: "localhost", Port: 70000, VectorSize: 1536},
			wantErr: true,
		},
		{
			name:    "missing vector size",
			config:  QdrantConfig{Host: "localhost", Port: 6334},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "unavailable", err: status.Error(grpccodes.Unavailable, "down"), want: true},
		{name: "deadline exceeded", err: status.Error(grpccodes.DeadlineExceeded, "slow"), want: true},
		{name: "aborted", err: status.Error(grpccodes.Aborted, "conflict"), want: true},
		{name: "resource exhausted", err: status.Error(grpccodes.ResourceExhausted, "quota"), want: true},
		{name: "not found", err: status.Error(grpccodes.NotFound, "missing"), want: false},
		{name: "invalid argument", err: status.Error(grpccodes.InvalidArgument, "bad"), want: false},
		{name: "permission denied", err: status.Error(grpccodes.PermissionDenied, "denied"), want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientError(tt.err))
		})
	}
}

func TestPointID(t *testing.T) {
	// Non-UUID record IDs map to deterministic UUIDs.
	a := pointID("chunk-17")
	b := pointID("chunk-17")
	c := pointID("chunk-18")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err := uuid.Parse(a)
	require.NoError(t, err)

	// IDs that are already UUIDs pass through unchanged.
	raw := "2b0a9f4e-5c3d-4e21-8f6a-7d9b1c0e3a55"
	assert.Equal(t, raw, pointID(raw))
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "pinecone", VectorSize: 3})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_Chromem(t *testing.T) {
	store, err := New(Config{Provider: ProviderChromem, VectorSize: 3})
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*ChromemStore)
	assert.True(t, ok)
}
