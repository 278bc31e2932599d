package entities

// Synagogue is a shul listing
type Synagogue struct {
	Entity
	Denomination      string `json:"denomination" db:"denomination"`
	ShulType          string `json:"shul_type" db:"shul_type"`
	HasMechitza       bool   `json:"has_mechitza" db:"has_mechitza"`
	HasParking        bool   `json:"has_parking" db:"has_parking"`
	HasDisabledAccess bool   `json:"has_disabled_access" db:"has_disabled_access"`
	HasDailyMinyan    bool   `json:"has_daily_minyan" db:"has_daily_minyan"`
}

// Columns lists the synagogue columns in scan order
func (s *Synagogue) Columns() []string {
	return append(s.Entity.Columns(),
		"denomination", "shul_type", "has_mechitza", "has_parking", "has_disabled_access", "has_daily_minyan",
	)
}

// ScanTargets returns pointers matching Columns
func (s *Synagogue) ScanTargets() []any {
	return append(s.Entity.ScanTargets(),
		&s.Denomination, &s.ShulType, &s.HasMechitza, &s.HasParking, &s.HasDisabledAccess, &s.HasDailyMinyan,
	)
}

// Field returns a column value
func (s *Synagogue) Field(column string) (any, bool) {
	switch column {
	case "denomination":
		return s.Denomination, true
	case "shul_type":
		return s.ShulType, true
	case "has_mechitza":
		return s.HasMechitza, true
	case "has_parking":
		return s.HasParking, true
	case "has_disabled_access":
		return s.HasDisabledAccess, true
	case "has_daily_minyan":
		return s.HasDailyMinyan, true
	}
	return s.Entity.Field(column)
}
