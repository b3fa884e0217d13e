package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSinkPosts(t *testing.T) {
	var (
		mu  sync.Mutex
		got []Event
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("X-Worker-Token") != "tok" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL+"/", "tok")
	s.Client = srv.Client()
	require.NoError(t, s.Publish(context.Background(), Event{RunID: "r1", Module: "LDK", Status: StatusSucceeded}))

	mu.Lock()
	require.Len(t, got, 1)
	assert.Equal(t, "LDK", got[0].Module)
	assert.NotZero(t, got[0].Timestamp)
	mu.Unlock()

	bad := NewHTTPSink(srv.URL, "wrong")
	bad.Client = srv.Client()
	require.Error(t, bad.Publish(context.Background(), Event{RunID: "r1"}))
}

func TestHTTPSinkWithoutURLIsNoop(t *testing.T) {
	assert.NoError(t, NewHTTPSink("", "").Publish(context.Background(), Event{}))
}

func TestRedisSinkAppends(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := NewRedisSink("redis://"+mr.Addr(), "test:events")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Publish(ctx, Event{RunID: "r1", Module: "SECP256K1", Lane: "sequential", Status: StatusRunning}))
	require.NoError(t, s.Publish(ctx, Event{RunID: "r1", Module: "SECP256K1", Lane: "sequential", Status: StatusFailed, Summary: "error: x"}))

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, StatusRunning, items[0].Status)
	assert.Equal(t, StatusFailed, items[1].Status)
	assert.Equal(t, "error: x", items[1].Summary)
}

func TestRedisSinkConfigErrors(t *testing.T) {
	_, err := NewRedisSink("", "k")
	require.Error(t, err)
	_, err = NewRedisSink("://bad", "k")
	require.Error(t, err)
}

func TestKafkaSinkRequiresBrokers(t *testing.T) {
	_, err := NewKafkaSink(" ", "topic")
	require.Error(t, err)
	s, err := NewKafkaSink("localhost:9092,localhost:9093", "")
	require.NoError(t, err)
	assert.Equal(t, "autobuild.events", s.w.Topic)
	require.NoError(t, s.Close())
}

type recordSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordSink) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordSink) Close() error { return r.err }

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	ok := &recordSink{}
	failing := &recordSink{err: errors.New("down")}
	m := Multi{ok, failing, NopSink{}}

	err := m.Publish(context.Background(), Event{RunID: "r1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1)
	require.Error(t, m.Close())
	assert.NoError(t, Multi{ok}.Close())
}
