package domain

import (
	"encoding/json"
	"testing"
)

func TestEvent_MarshalJSON_FlatPayload(t *testing.T) {
	t.Parallel()

	ev := ReportVerifiedEvent(7, 42, "accidente", SeverityHigh, 3)

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if payload["event_type"] != "reporte_verificado" {
		t.Fatalf("unexpected event_type: %v", payload["event_type"])
	}
	if payload["user_id"] != float64(7) {
		t.Fatalf("unexpected user_id: %v", payload["user_id"])
	}
	if payload["puntos_base"] != float64(50) {
		t.Fatalf("unexpected puntos_base: %v", payload["puntos_base"])
	}
	if payload["incidente_id"] != float64(42) {
		t.Fatalf("unexpected incidente_id: %v", payload["incidente_id"])
	}
	if payload["severidad"] != "alta" {
		t.Fatalf("unexpected severidad: %v", payload["severidad"])
	}
	if payload["validaciones_count"] != float64(3) {
		t.Fatalf("unexpected validaciones_count: %v", payload["validaciones_count"])
	}

	// No nesting: the fixed fields live at the top level.
	if _, nested := payload["data"]; nested {
		t.Fatalf("payload must be flat, found data envelope")
	}
}

func TestEvent_MarshalJSON_CreatedCarriesBasePoints(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(ReportCreatedEvent(3, 9, "trancon", SeverityLow))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if payload["event_type"] != "reporte_creado" || payload["puntos_base"] != float64(10) {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestLevelForXP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		xp   int64
		want int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{900, 4},
	}

	for _, tc := range cases {
		if got := LevelForXP(tc.xp); got != tc.want {
			t.Fatalf("LevelForXP(%d): expected %d, got %d", tc.xp, tc.want, got)
		}
	}
}
