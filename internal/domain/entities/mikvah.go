package entities

// Mikvah is a ritual bath listing
type Mikvah struct {
	Entity
	MikvahType             string `json:"mikvah_type" db:"mikvah_type"`
	AppointmentRequired    bool   `json:"appointment_required" db:"appointment_required"`
	ContactPerson          string `json:"contact_person" db:"contact_person"`
	IsWheelchairAccessible bool   `json:"is_wheelchair_accessible" db:"is_wheelchair_accessible"`
}

// Columns lists the mikvah columns in scan order
func (m *Mikvah) Columns() []string {
	return append(m.Entity.Columns(),
		"mikvah_type", "appointment_required", "contact_person", "is_wheelchair_accessible",
	)
}

// ScanTargets returns pointers matching Columns
func (m *Mikvah) ScanTargets() []any {
	return append(m.Entity.ScanTargets(),
		&m.MikvahType, &m.AppointmentRequired, &m.ContactPerson, &m.IsWheelchairAccessible,
	)
}

// Field returns a column value
func (m *Mikvah) Field(column string) (any, bool) {
	switch column {
	case "mikvah_type":
		return m.MikvahType, true
	case "appointment_required":
		return m.AppointmentRequired, true
	case "contact_person":
		return m.ContactPerson, true
	case "is_wheelchair_accessible":
		return m.IsWheelchairAccessible, true
	}
	return m.Entity.Field(column)
}
