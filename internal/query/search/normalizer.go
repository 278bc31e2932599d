package search

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/jewgo/backend/internal/domain/entities"
	apperrors "github.com/jewgo/backend/pkg/errors"
	"github.com/jewgo/backend/pkg/geo"
)

// SortMode selects the ordering of a result set
type SortMode string

const (
	SortRating   SortMode = "rating"
	SortDistance SortMode = "distance"
	SortName     SortMode = "name"
	SortNewest   SortMode = "newest"
)

// Reserved request parameters that are not column filters
const (
	ParamLat                  = "lat"
	ParamLng                  = "lng"
	ParamLatitude             = "latitude"
	ParamLongitude            = "longitude"
	ParamRadius               = "radius"
	ParamHoursFilter          = "hoursFilter"
	ParamSort                 = "sort"
	ParamLimit                = "limit"
	ParamPage                 = "page"
	ParamCursor               = "cursor"
	ParamIncludeFilterOptions = "include_filter_options"
	ParamIncludeTotal         = "include_total"
)

// Condition is a validated, typed filter value
type Condition struct {
	Field  Field
	Values []any
}

// PageParams selects offset (Page > 0) or cursor pagination
type PageParams struct {
	Limit        int
	Page         int
	Cursor       string
	IncludeTotal bool
}

// Offset reports whether offset pagination was requested.
// Offset pages are not stable when rows are inserted between requests.
func (p PageParams) Offset() bool {
	return p.Page > 0
}

// SearchRequest is the normalized form of a search query
type SearchRequest struct {
	Schema        Schema
	Conditions    []Condition
	Location      *geo.Point
	RadiusMiles   float64
	Hours         entities.HoursWindow
	Sort          SortMode
	Page          PageParams
	IncludeFacets bool
}

// Limits bounds what clients may ask for
type Limits struct {
	DefaultLimit   int
	MaxLimit       int
	MaxRadiusMiles float64
}

// Normalizer validates raw query parameters against a schema
type Normalizer struct {
	limits Limits
}

// NewNormalizer creates a normalizer
func NewNormalizer(limits Limits) *Normalizer {
	return &Normalizer{limits: limits}
}

// maxOffset caps offset pagination so (page-1)*limit stays well inside an int
// and a bigint OFFSET.
const maxOffset = 1_000_000

// maxPage is the last page reachable at the largest allowed limit
func (n *Normalizer) maxPage() int {
	return maxOffset/max(n.limits.MaxLimit, 1) + 1
}

// Normalize coerces raw parameters into a SearchRequest. It stops at the first
// invalid parameter, visiting parameters in name order.
func (n *Normalizer) Normalize(schema Schema, values url.Values) (*SearchRequest, error) {
	req := &SearchRequest{
		Schema: schema,
		Sort:   SortRating,
		Page:   PageParams{Limit: n.limits.DefaultLimit},
	}

	var lat, lng *float64
	var radius *float64
	var latParam, lngParam string
	statusSet := false

	params := make([]string, 0, len(values))
	for k := range values {
		params = append(params, k)
	}
	sort.Strings(params)

	for _, param := range params {
		raw := firstValue(values[param])

		switch param {
		case ParamLat, ParamLatitude:
			if raw == "" {
				continue
			}
			if lat != nil {
				return nil, apperrors.NewFieldError(param, apperrors.ReasonInvalidCoordinate,
					fmt.Sprintf("%s cannot be combined with %s", param, latParam))
			}
			v, err := parseCoordinate(param, raw, geo.ValidateLatitude)
			if err != nil {
				return nil, err
			}
			lat, latParam = &v, param
			continue
		case ParamLng, ParamLongitude:
			if raw == "" {
				continue
			}
			if lng != nil {
				return nil, apperrors.NewFieldError(param, apperrors.ReasonInvalidCoordinate,
					fmt.Sprintf("%s cannot be combined with %s", param, lngParam))
			}
			v, err := parseCoordinate(param, raw, geo.ValidateLongitude)
			if err != nil {
				return nil, err
			}
			lng, lngParam = &v, param
			continue
		case ParamRadius:
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, apperrors.NewFieldError(param, apperrors.ReasonInvalidNumber, "radius must be a number of miles")
			}
			if v <= 0 || v > n.limits.MaxRadiusMiles {
				return nil, apperrors.NewFieldError(param, apperrors.ReasonInvalidRange,
					fmt.Sprintf("radius must be greater than 0 and at most %g miles", n.limits.MaxRadiusMiles))
			}
			radius = &v
			continue
		case ParamHoursFilter:
			if raw == "" {
				continue
			}
			w, ok := parseHoursWindow(raw)
			if !ok {
				return nil, apperrors.NewFieldError(param, apperrors.ReasonInvalidEnumValue,
					fmt.Sprintf("hoursFilter must be one of %s", joinWindows()))
			}
			req.Hours = w
			continue
		case ParamSort:
			if raw == "" {
				continue
			}
			mode := SortMode(raw)
			switch mode {
			case SortRating, SortDistance, SortName, SortNewest:
				req.Sort = mode
			default:
				return nil, apperrors.NewFieldError(param, apperrors.ReasonInvalidEnumValue,
					"sort must be one of rating, distance, name, newest")
			}
			continue
		case ParamLimit:
			if raw == "" {
				continue
			}
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, apperrors.NewFieldError(param, apperrors.ReasonInvalidNumber, "limit must be an integer")
			}
			if v < 1 {
				return nil, apperrors.NewFieldError(param, apperrors.ReasonInvalidRange, "limit must be at least 1")
			}
			req.Page.Limit = min(v, n.limits.MaxLimit)
			continue
		case ParamPage:
			if raw == "" {
				continue
			}
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, apperrors.NewFieldError(param, apperrors.ReasonInvalidNumber, "page must be an integer")
			}
			if v < 1 || v > n.maxPage() {
				return nil, apperrors.NewFieldError(param, apperrors.ReasonInvalidRange,
					fmt.Sprintf("page must be between 1 and %d", n.maxPage()))
			}
			req.Page.Page = v
			continue
		case ParamCursor:
			req.Page.Cursor = raw
			continue
		case ParamIncludeFilterOptions, ParamIncludeTotal:
			if raw == "" {
				continue
			}
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, apperrors.NewFieldError(param, apperrors.ReasonInvalidBoolean, param+" must be true or false")
			}
			if param == ParamIncludeFilterOptions {
				req.IncludeFacets = v
			} else {
				req.Page.IncludeTotal = v
			}
			continue
		}

		field, ok := schema.Field(param)
		if !ok {
			return nil, apperrors.NewFieldError(param, apperrors.ReasonUnknownFilter,
				fmt.Sprintf("%s cannot be filtered on %s", schema.Type(), param))
		}
		cond, err := coerce(field, values[param])
		if err != nil {
			return nil, err
		}
		if cond == nil {
			continue
		}
		if field.Param == "status" {
			statusSet = true
		}
		req.Conditions = append(req.Conditions, *cond)
	}

	if err := checkBounds(req.Conditions); err != nil {
		return nil, err
	}

	switch {
	case lat != nil && lng != nil:
		req.Location = &geo.Point{Latitude: *lat, Longitude: *lng}
	case lat != nil:
		return nil, apperrors.NewFieldError(ParamLng, apperrors.ReasonInvalidCoordinate,
			fmt.Sprintf("%s requires a longitude", latParam))
	case lng != nil:
		return nil, apperrors.NewFieldError(ParamLat, apperrors.ReasonInvalidCoordinate,
			fmt.Sprintf("%s requires a latitude", lngParam))
	}

	if radius != nil {
		if req.Location == nil {
			return nil, apperrors.NewFieldError(ParamRadius, apperrors.ReasonRequiresLocation, "radius requires lat and lng")
		}
		req.RadiusMiles = *radius
	}
	if req.Sort == SortDistance && req.Location == nil {
		return nil, apperrors.NewFieldError(ParamSort, apperrors.ReasonRequiresLocation, "sort=distance requires lat and lng")
	}
	if req.Page.Cursor != "" && req.Page.Page > 0 {
		return nil, apperrors.NewFieldError(ParamCursor, apperrors.ReasonInvalidRange, "cursor and page cannot be combined")
	}

	if !statusSet {
		statusField, _ := schema.Field("status")
		req.Conditions = append(req.Conditions, Condition{Field: statusField, Values: []any{entities.StatusActive}})
	}

	return req, nil
}

func coerce(field Field, raw []string) (*Condition, error) {
	switch field.Kind {
	case KindText:
		v := strings.TrimSpace(firstValue(raw))
		if v == "" {
			return nil, nil
		}
		return &Condition{Field: field, Values: []any{v}}, nil

	case KindSet, KindEnum:
		list := splitList(raw)
		if len(list) == 0 {
			return nil, nil
		}
		vals := make([]any, 0, len(list))
		seen := make(map[string]struct{}, len(list))
		for _, v := range list {
			if field.Kind == KindEnum && !contains(field.Enum, v) {
				return nil, apperrors.NewFieldError(field.Param, apperrors.ReasonInvalidEnumValue,
					fmt.Sprintf("%s must be one of %s", field.Param, strings.Join(field.Enum, ", ")))
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			vals = append(vals, v)
		}
		return &Condition{Field: field, Values: vals}, nil

	case KindBool:
		v := strings.TrimSpace(firstValue(raw))
		if v == "" {
			return nil, nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, apperrors.NewFieldError(field.Param, apperrors.ReasonInvalidBoolean, field.Param+" must be true or false")
		}
		return &Condition{Field: field, Values: []any{b}}, nil

	case KindMin, KindMax:
		v := strings.TrimSpace(firstValue(raw))
		if v == "" {
			return nil, nil
		}
		f, err := parseBoundedNumber(field, v)
		if err != nil {
			return nil, err
		}
		return &Condition{Field: field, Values: []any{f}}, nil

	case KindRange:
		v := strings.TrimSpace(firstValue(raw))
		if v == "" {
			return nil, nil
		}
		lo, hi, found := strings.Cut(v, "-")
		if !found {
			hi = lo
		}
		minV, err := parseBoundedNumber(field, strings.TrimSpace(lo))
		if err != nil {
			return nil, err
		}
		maxV, err := parseBoundedNumber(field, strings.TrimSpace(hi))
		if err != nil {
			return nil, err
		}
		if minV > maxV {
			return nil, apperrors.NewFieldError(field.Param, apperrors.ReasonInvalidRange,
				fmt.Sprintf("%s minimum %g exceeds maximum %g", field.Param, minV, maxV))
		}
		return &Condition{Field: field, Values: []any{minV, maxV}}, nil
	}
	return nil, apperrors.NewFieldError(field.Param, apperrors.ReasonUnknownFilter, "unsupported filter kind")
}

// checkBounds enforces min <= max across separate Min/Max parameters on the same column
func checkBounds(conds []Condition) error {
	mins := map[string]Condition{}
	for _, c := range conds {
		if c.Field.Kind == KindMin {
			mins[c.Field.Column] = c
		}
	}
	for _, c := range conds {
		if c.Field.Kind != KindMax {
			continue
		}
		lo, ok := mins[c.Field.Column]
		if !ok {
			continue
		}
		if lo.Values[0].(float64) > c.Values[0].(float64) {
			return apperrors.NewFieldError(lo.Field.Param, apperrors.ReasonInvalidRange,
				fmt.Sprintf("%s must not exceed %s", lo.Field.Param, c.Field.Param))
		}
	}
	return nil
}

func parseBoundedNumber(field Field, raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, apperrors.NewFieldError(field.Param, apperrors.ReasonInvalidNumber, field.Param+" must be numeric")
	}
	if f < field.Min || f > field.Max {
		return 0, apperrors.NewFieldError(field.Param, apperrors.ReasonInvalidRange,
			fmt.Sprintf("%s must be between %g and %g", field.Param, field.Min, field.Max))
	}
	return f, nil
}

func parseCoordinate(param, raw string, validate func(float64) error) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperrors.NewFieldError(param, apperrors.ReasonInvalidCoordinate, param+" must be a number")
	}
	if err := validate(v); err != nil {
		return 0, apperrors.NewFieldError(param, apperrors.ReasonInvalidCoordinate, err.Error())
	}
	return v, nil
}

func parseHoursWindow(raw string) (entities.HoursWindow, bool) {
	for _, w := range entities.HoursWindows {
		if string(w) == raw {
			return w, true
		}
	}
	return "", false
}

func joinWindows() string {
	names := make([]string, len(entities.HoursWindows))
	for i, w := range entities.HoursWindows {
		names[i] = string(w)
	}
	return strings.Join(names, ", ")
}

func firstValue(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// splitList accepts both ?k=a,b and ?k=a&k=b
func splitList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
