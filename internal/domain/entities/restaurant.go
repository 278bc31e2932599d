package entities

// Restaurant is a kosher eatery listing
type Restaurant struct {
	Entity
	KosherCategory string `json:"kosher_category" db:"kosher_category"`
	Agency         string `json:"agency" db:"agency"`
	PriceLevel     *int   `json:"price_level" db:"price_level"`
	CholovYisroel  bool   `json:"cholov_yisroel" db:"cholov_yisroel"`
	PasYisroel     bool   `json:"pas_yisroel" db:"pas_yisroel"`
}

// Columns lists the restaurant columns in scan order
func (r *Restaurant) Columns() []string {
	return append(r.Entity.Columns(),
		"kosher_category", "agency", "price_level", "cholov_yisroel", "pas_yisroel",
	)
}

// ScanTargets returns pointers matching Columns
func (r *Restaurant) ScanTargets() []any {
	return append(r.Entity.ScanTargets(),
		&r.KosherCategory, &r.Agency, &r.PriceLevel, &r.CholovYisroel, &r.PasYisroel,
	)
}

// Field returns a column value
func (r *Restaurant) Field(column string) (any, bool) {
	switch column {
	case "kosher_category":
		return r.KosherCategory, true
	case "agency":
		return r.Agency, true
	case "price_level":
		return intOrNil(r.PriceLevel), true
	case "cholov_yisroel":
		return r.CholovYisroel, true
	case "pas_yisroel":
		return r.PasYisroel, true
	}
	return r.Entity.Field(column)
}
