package domain

import "encoding/json"

// Event types double as AMQP routing keys on the topic exchange.
const (
	EventReportCreated  = "reporte_creado"
	EventReportVerified = "reporte_verificado"

	// EventReportValidated is the legacy name some producers used for the
	// verified-class event; the consumer treats it as EventReportVerified.
	EventReportValidated = "reporte_validado"
)

// Event is the flat payload published for every incident-lifecycle change.
// Extra carries event-specific fields (incidente_id, tipo_incidente,
// severidad, validaciones_count) alongside the fixed ones.
type Event struct {
	Type       string
	UserID     int64
	BasePoints int
	Extra      map[string]any
}

func (ev Event) MarshalJSON() ([]byte, error) {
	payload := make(map[string]any, len(ev.Extra)+3)
	for k, v := range ev.Extra {
		payload[k] = v
	}
	payload["event_type"] = ev.Type
	payload["user_id"] = ev.UserID
	payload["puntos_base"] = ev.BasePoints
	return json.Marshal(payload)
}

func ReportCreatedEvent(ownerID, incidentID int64, incidentType string, severity Severity) Event {
	return Event{
		Type:       EventReportCreated,
		UserID:     ownerID,
		BasePoints: 10,
		Extra: map[string]any{
			"incidente_id":   incidentID,
			"tipo_incidente": incidentType,
			"severidad":      string(severity),
		},
	}
}

func ReportVerifiedEvent(ownerID, incidentID int64, incidentType string, severity Severity, validations int) Event {
	return Event{
		Type:       EventReportVerified,
		UserID:     ownerID,
		BasePoints: 50,
		Extra: map[string]any{
			"incidente_id":       incidentID,
			"tipo_incidente":     incidentType,
			"severidad":          string(severity),
			"validaciones_count": validations,
		},
	}
}
