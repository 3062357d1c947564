package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedClient blocks Fetch until release is closed.
type gatedClient struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func (g *gatedClient) Fetch(ctx context.Context) (*Snapshot, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
	}
	<-g.release
	if g.err != nil {
		return nil, g.err
	}
	return &Snapshot{Token: "t"}, nil
}

func (g *gatedClient) Mutate(ctx context.Context, m Mutation) error { return nil }

func TestAccessor_Snapshot(t *testing.T) {
	t.Run("Should coalesce concurrent fetches into one request", func(t *testing.T) {
		client := &gatedClient{started: make(chan struct{}), release: make(chan struct{})}
		acc := NewAccessor(client)

		const callers = 5
		results := make([]*Snapshot, callers)
		var wg sync.WaitGroup

		wg.Add(1)
		go func() {
			defer wg.Done()
			results[0], _ = acc.Snapshot(context.Background())
		}()
		<-client.started

		for i := 1; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = acc.Snapshot(context.Background())
			}(i)
		}

		// Let the joiners reach the in-flight call before releasing it.
		time.Sleep(50 * time.Millisecond)
		close(client.release)
		wg.Wait()

		assert.Equal(t, int32(1), client.calls.Load())
		for i := 1; i < callers; i++ {
			assert.Same(t, results[0], results[i])
		}
	})

	t.Run("Should issue a new request once the previous one settled", func(t *testing.T) {
		c := NewMemoryCart(nil)
		acc := NewAccessor(c)

		_, err := acc.Snapshot(context.Background())
		require.NoError(t, err)
		_, err = acc.Snapshot(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 2, c.Fetches())
	})

	t.Run("Should wrap transport errors", func(t *testing.T) {
		boom := errors.New("connection reset")
		client := &gatedClient{started: make(chan struct{}), release: make(chan struct{}), err: boom}
		close(client.release)

		_, err := NewAccessor(client).Snapshot(context.Background())

		assert.ErrorIs(t, err, boom)
	})
}
