package storage

const (
	ResourceMaterial  = "material"
	ResourceEquipment = "equipment"
)

// Resource строка затрат смены: материал или техника.
type Resource struct {
	ID      int64  `json:"resource_id"`
	ShiftID int64  `json:"shift_id"`
	Kind    string `json:"kind"` // material | equipment
	Name    string `json:"name"`

	// материал
	Unit      string  `json:"unit,omitempty"`
	Quantity  float64 `json:"quantity,omitempty"`
	UnitPrice float64 `json:"unit_price,omitempty"`
	Sum       float64 `json:"sum,omitempty"`

	// техника
	Hours    float64 `json:"hours,omitempty"`
	RateKind string  `json:"rate_kind,omitempty"` // hour | shift | trip
	Rate     float64 `json:"rate,omitempty"`

	Comment string `json:"comment,omitempty"`
}
