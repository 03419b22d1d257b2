package domain

type CreateIncidentRequest struct {
	Type        string  `json:"tipo" validate:"required,max=100"`
	Description string  `json:"descripcion" validate:"required,max=1000"`
	Lat         float64 `json:"latitud" validate:"lat"`
	Lng         float64 `json:"longitud" validate:"lng"`
	OwnerID     int64   `json:"usuario_id" validate:"required,gt=0"`
}

type ValidationRequest struct {
	UserID int64 `json:"usuario_id" validate:"required,gt=0"`
}

type ValidationResponse struct {
	IncidentID       int64         `json:"incidente_id"`
	UserID           int64         `json:"usuario_id"`
	ValidationsCount int           `json:"validaciones_count"`
	State            IncidentState `json:"estado"`
	Verified         bool          `json:"verificado"`
	Message          string        `json:"mensaje"`
}

type NearbyRequest struct {
	Lat      float64 `validate:"lat"`
	Lng      float64 `validate:"lng"`
	RadiusKM float64 `validate:"radius_km"`
}

// GeoJSON shapes for the nearby read endpoint.

type PointGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lng, lat]
}

type IncidentFeature struct {
	Type       string         `json:"type"`
	Geometry   PointGeometry  `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type IncidentFeatureCollection struct {
	Type     string            `json:"type"`
	Features []IncidentFeature `json:"features"`
}
