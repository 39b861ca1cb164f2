package session

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercadinho/internal/network"
)

// fakeFrameConn é uma conexão de mentira para exercitar registry e handler
// sem rede de verdade.
type fakeFrameConn struct {
	in     chan string
	out    chan string
	closed chan struct{}
	once   sync.Once
}

func newFakeFrameConn() *fakeFrameConn {
	return &fakeFrameConn{
		in:     make(chan string, 16),
		out:    make(chan string, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeFrameConn) ReadFrame() (string, error) {
	select {
	case frame, ok := <-f.in:
		if !ok {
			return "", io.EOF
		}
		return frame, nil
	case <-f.closed:
		return "", io.EOF
	}
}

func (f *fakeFrameConn) WriteFrame(frame string) error {
	select {
	case f.out <- frame:
	default:
	}
	return nil
}

func (f *fakeFrameConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeFrameConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func (f *fakeFrameConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func barrierReleased(r *Registry) bool {
	select {
	case <-r.AwaitStart():
		return true
	default:
		return false
	}
}

func TestBarrierReleasesExactlyAtThree(t *testing.T) {
	r := NewRegistry()

	slot, last, err := r.Register(nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, slot)
	assert.False(t, last)
	assert.False(t, barrierReleased(r))

	slot, last, err = r.Register(nil, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, slot)
	assert.False(t, last)
	assert.False(t, barrierReleased(r))

	slot, last, err = r.Register(nil, "carol")
	require.NoError(t, err)
	assert.Equal(t, 2, slot)
	assert.True(t, last, "o terceiro registro completa a mesa")
	assert.True(t, barrierReleased(r))
}

func TestFourthRegistrationIsRejected(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"alice", "bob", "carol"} {
		_, _, err := r.Register(nil, name)
		require.NoError(t, err)
	}

	_, _, err := r.Register(nil, "dave")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, MaxPlayers, r.Count())
}

func TestConcurrentRegistrationsNeverOverfill(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := r.Register(nil, "player")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	accepted, rejected := 0, 0
	for err := range results {
		if err == nil {
			accepted++
		} else {
			rejected++
		}
	}
	assert.Equal(t, MaxPlayers, accepted)
	assert.Equal(t, 7, rejected)
	assert.True(t, barrierReleased(r))
}

func TestProgressNotificationsPerCountChange(t *testing.T) {
	r := NewRegistry()

	_, _, err := r.Register(nil, "alice")
	require.NoError(t, err)
	aliceProgress := r.Progress(0)
	assert.Equal(t, 1, <-aliceProgress)

	_, _, err = r.Register(nil, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, <-aliceProgress)
	assert.Equal(t, 2, <-r.Progress(1))
}

func TestReleaseReopensLobbySlot(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Register(nil, "alice")
	require.NoError(t, err)
	_, _, err = r.Register(nil, "bob")
	require.NoError(t, err)
	bobProgress := r.Progress(1)
	<-bobProgress // contagem 2 da própria entrada

	// Alice cai no lobby: a vaga reabre e bob fica sabendo.
	r.Release(0)
	assert.Equal(t, 1, <-bobProgress)

	slot, _, err := r.Register(nil, "carol")
	require.NoError(t, err)
	assert.Equal(t, 0, slot, "o slot liberado é reutilizado")
}

func TestDrainAndResetForNextSession(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"alice", "bob", "carol"} {
		_, _, err := r.Register(nil, name)
		require.NoError(t, err)
	}

	r.Drain()
	_, _, err := r.Register(nil, "dave")
	assert.ErrorIs(t, err, ErrCapacityExceeded, "drenando não entra ninguém")

	for slot := 0; slot < MaxPlayers; slot++ {
		r.Release(slot)
	}

	// Registro de volta à fase de aceitação, barreira rearmada.
	assert.False(t, barrierReleased(r))
	slot, last, err := r.Register(nil, "dave")
	require.NoError(t, err)
	assert.Equal(t, 0, slot)
	assert.False(t, last)
}

func TestLobbyTimeoutEvictsWaiters(t *testing.T) {
	r := NewRegistry(WithLobbyTimeout(50 * time.Millisecond))

	fc := newFakeFrameConn()
	client := network.NewClient(fc)
	client.Start()

	_, _, err := r.Register(client, "alone")
	require.NoError(t, err)

	require.Eventually(t, fc.isClosed, 2*time.Second, 10*time.Millisecond,
		"o lobby incompleto deve ser derrubado após o prazo")
}
