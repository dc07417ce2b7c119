// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package redis_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstore "github.com/taibuivan/happypanda/internal/platform/redis"
)

func TestNewStore(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Bad URL", func(t *testing.T) {
		_, err := redisstore.NewStore(context.Background(), "http://not-redis", "happypanda", log)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid URL")
	})

	t.Run("Unreachable server", func(t *testing.T) {
		_, err := redisstore.NewStore(context.Background(), "redis://127.0.0.1:1/0", "happypanda", log)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ping failed")
	})
}
