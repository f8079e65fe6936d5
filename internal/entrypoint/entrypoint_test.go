package entrypoint

import (
	"context"
	"encoding/hex"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/config"
)

func TestCSRFSecret(t *testing.T) {
	t.Run("hex secret is decoded", func(t *testing.T) {
		secret, err := csrfSecret("00ff10")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0xff, 0x10}, secret)
	})

	t.Run("plain secret is used as is", func(t *testing.T) {
		secret, err := csrfSecret("not hex at all")
		require.NoError(t, err)
		assert.Equal(t, []byte("not hex at all"), secret)
	})

	t.Run("missing secret is generated", func(t *testing.T) {
		first, err := csrfSecret("")
		require.NoError(t, err)
		assert.Len(t, first, 32)

		second, err := csrfSecret("")
		require.NoError(t, err)
		assert.NotEqual(t, hex.EncodeToString(first), hex.EncodeToString(second))
	})
}

func TestNewApp(t *testing.T) {
	cfg := &config.Config{
		Database: config.Database{Path: filepath.Join(t.TempDir(), "moneta.db"), LogLevel: "silent"},
		Auth:     config.Auth{BcryptCost: 4},
	}

	app, err := NewApp(cfg, zap.NewNop())
	require.NoError(t, err)

	moved, err := app.Lending.SweepAllOverdue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, moved)

	assert.NoError(t, app.Close())
}

func TestServe_StopsOnCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())

	shutdownCalled := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, srv, time.Second, zap.NewNop(), func(context.Context) {
			close(shutdownCalled)
		})
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	select {
	case <-shutdownCalled:
	default:
		t.Fatal("shutdown callback was not called")
	}
}
