package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func validEvent(kind Kind) Event {
	evt := Event{RunID: "run-1", TS: time.Now().UTC(), Kind: kind}
	switch kind {
	case KindStageStart, KindStageDone, KindFetchStart:
		evt.Stage = StageSearchPages
	case KindFetchDone:
		evt.Stage = StageSearchPages
		evt.Status = FetchOK
	}
	return evt
}

func TestHubDeliversToAllSinks(t *testing.T) {
	t.Parallel()

	first := &captureSink{}
	second := &captureSink{}
	hub := NewHub(nil, first, second)

	hub.Emit(validEvent(KindRunStart))
	hub.Emit(validEvent(KindStageStart))
	hub.Emit(validEvent(KindRunDone))

	require.NoError(t, hub.Close(context.Background()))

	require.Len(t, first.snapshot(), 3)
	require.Len(t, second.snapshot(), 3)
	assert.Equal(t, KindRunStart, first.snapshot()[0].Kind)
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(nil, sink)

	hub.Emit(Event{})                                          // no run id
	hub.Emit(Event{RunID: "run-1", TS: time.Now().UTC()})      // no kind
	hub.Emit(Event{RunID: "run-1", Kind: KindRunStart})        // no timestamp
	hub.Emit(validEvent(KindRunStart))

	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.snapshot(), 1)
}

func TestHubEmitAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(nil, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(validEvent(KindRunStart))
	assert.Empty(t, sink.snapshot())
}

func TestHubCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil, &captureSink{})
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Event)
		wantErr bool
	}{
		{"valid run start", func(*Event) {}, false},
		{"missing run id", func(e *Event) { e.RunID = "" }, true},
		{"missing timestamp", func(e *Event) { e.TS = time.Time{} }, true},
		{"unknown kind", func(e *Event) { e.Kind = "SOMETHING" }, true},
		{"negative duration", func(e *Event) { e.Dur = -time.Second }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			evt := validEvent(KindRunStart)
			tc.mutate(&evt)
			err := evt.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("stage events require a stage", func(t *testing.T) {
		t.Parallel()
		evt := validEvent(KindStageStart)
		evt.Stage = ""
		assert.Error(t, evt.Validate())
	})

	t.Run("fetch done requires a status", func(t *testing.T) {
		t.Parallel()
		evt := validEvent(KindFetchDone)
		evt.Status = ""
		assert.Error(t, evt.Validate())
	})
}
