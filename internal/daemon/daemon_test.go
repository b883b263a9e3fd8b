package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfmyers9/upnp-scribbles/internal/music"
	"github.com/jfmyers9/upnp-scribbles/internal/renderer"
)

type namedSession struct {
	*fakeSession
	name string
}

func (n namedSession) DeviceName() string { return n.name }

type sessionConnector struct {
	sess Session
}

func (c sessionConnector) Connect(context.Context) (Session, error) {
	return c.sess, nil
}

func TestDaemon_PublishesStatus(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	sess := newFakeSession()
	reporter := &fakeReporter{}

	d, err := New(Config{
		StateFile:  statePath,
		QueueDB:    ":memory:",
		Engine:     DefaultEngineConfig(),
		Supervisor: DefaultSupervisorConfig(),
	}, sessionConnector{sess: namedSession{fakeSession: sess, name: "Living Room"}}, reporter, nil, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.run(ctx) }()

	sess.events <- renderer.Batch{
		stateVar("PLAYING"),
		metaVar("Bellwether", "Seamus Blake", "Bellwether", "0:05:10"),
	}

	require.Eventually(t, func() bool {
		st, err := ReadStatus(statePath)
		return err == nil && st.Playing()
	}, waitFor, 5*time.Millisecond)

	st, err := ReadStatus(statePath)
	require.NoError(t, err)
	assert.Equal(t, ConnSubscribed, st.Connection)
	assert.Equal(t, "Living Room", st.Device)
	assert.Equal(t, "Bellwether", st.Track.Title)
	assert.Equal(t, 310*time.Second, st.Track.Duration)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("daemon did not stop")
	}
	require.NoError(t, d.Shutdown())

	st, err = ReadStatus(statePath)
	require.NoError(t, err)
	assert.Equal(t, ConnDisconnected, st.Connection)
	assert.Nil(t, st.Track)
	assert.Equal(t, music.StateUnknown, st.State)
	assert.Equal(t, []string{"now:Bellwether"}, reporter.calls)
}
