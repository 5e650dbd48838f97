package haven

import (
	"context"
	"testing"
	"time"
)

func TestConvertStateChanged(t *testing.T) {
	ev := &haEvent{
		EventType: "state_changed",
		TimeFired: "2024-01-01T08:05:00.123456+00:00",
		Data: haEventData{
			EntityID: testMotion,
			OldState: &haStateBlob{State: "off"},
			NewState: &haStateBlob{
				State: "on",
				Attributes: map[string]any{
					"battery":       81.5,
					"friendly_name": "Kitchen Motion",
				},
			},
		},
	}

	got, ok := convertStateChanged(ev)
	if !ok {
		t.Fatal("expected a converted event")
	}
	if got.EntityID != testMotion {
		t.Errorf("entity: got %q", got.EntityID)
	}
	want := time.Date(2024, 1, 1, 8, 5, 0, 123456000, time.UTC)
	if !got.Timestamp.Equal(want) {
		t.Errorf("timestamp: got %v, want %v", got.Timestamp, want)
	}
	if got.OldState.State != "off" || got.NewState.State != "on" {
		t.Errorf("states: got %q -> %q", got.OldState.State, got.NewState.State)
	}
	if got.NewState.Attributes["battery"] != "81.5" {
		t.Errorf("attributes should flatten to strings, got %q", got.NewState.Attributes["battery"])
	}
	if got.NewState.Attributes["friendly_name"] != "Kitchen Motion" {
		t.Errorf("friendly name: got %q", got.NewState.Attributes["friendly_name"])
	}
}

func TestConvertStateChangedSkipsPartialEvents(t *testing.T) {
	cases := []haEventData{
		{EntityID: testMotion, NewState: &haStateBlob{State: "on"}},
		{EntityID: testMotion, OldState: &haStateBlob{State: "off"}},
		{OldState: &haStateBlob{State: "off"}, NewState: &haStateBlob{State: "on"}},
	}
	for i, data := range cases {
		if _, ok := convertStateChanged(&haEvent{EventType: "state_changed", Data: data}); ok {
			t.Errorf("case %d: appearing/disappearing entities carry no signal", i)
		}
	}
}

func TestConvertStateChangedBadTimestampFallsBack(t *testing.T) {
	before := time.Now()
	got, ok := convertStateChanged(&haEvent{
		EventType: "state_changed",
		TimeFired: "yesterday-ish",
		Data: haEventData{
			EntityID: testMotion,
			OldState: &haStateBlob{State: "off"},
			NewState: &haStateBlob{State: "on"},
		},
	})
	if !ok {
		t.Fatal("expected a converted event")
	}
	if got.Timestamp.Before(before) {
		t.Errorf("unparseable time_fired should fall back to now, got %v", got.Timestamp)
	}
}

func TestHASourceCallServiceRequiresConnection(t *testing.T) {
	s := NewHASource(HASourceConfig{
		URL:    "ws://example.test/api/websocket",
		Logger: quietLogger(),
	})

	err := s.CallService(context.Background(), "notify", "mobile_app_anna", nil)
	if err != ErrNotConnected {
		t.Errorf("got %v, want ErrNotConnected", err)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("double close should be a no-op: %v", err)
	}
}

func TestHASourceRunStopsAfterClose(t *testing.T) {
	s := NewHASource(HASourceConfig{
		URL:    "ws://example.test/api/websocket",
		Logger: quietLogger(),
	})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background(), func(StateChangeEvent) {})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run after close should return nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after close")
	}
}
