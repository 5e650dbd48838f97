package haven

import "testing"

func TestMetricsUseIsolatedRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := NewMetrics()
	b := NewMetrics()

	a.EventsIngested.Inc()
	a.EventsDropped.WithLabelValues(dropUnmonitored).Inc()
	a.AnomaliesDetected.WithLabelValues("statistical").Inc()
	a.NotificationsSent.WithLabelValues(string(CategoryWelfare)).Inc()
	a.Confidence.Set(42.5)
	b.EventsIngested.Inc()

	families, err := a.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) == 0 {
		t.Fatal("expected gathered metric families")
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "haven_events_ingested_total" {
			found = true
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 1 {
				t.Errorf("ingested counter: got %f", got)
			}
		}
	}
	if !found {
		t.Error("haven_events_ingested_total not gathered")
	}
}
