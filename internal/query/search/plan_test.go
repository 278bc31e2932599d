package search_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewgo/backend/internal/query/search"
)

func TestBuild_Predicates(t *testing.T) {
	p, _ := plan(t, search.RestaurantSchema(), url.Values{
		"city":       {"Miami,Boca Raton"},
		"agency":     {"ORB"},
		"priceRange": {"1-2"},
		"search":     {"grill"},
	})

	ops := map[string][]search.Op{}
	for _, pred := range p.Predicates {
		ops[pred.Param] = append(ops[pred.Param], pred.Op)
	}
	assert.Equal(t, []search.Op{search.OpIn}, ops["city"])
	assert.Equal(t, []search.Op{search.OpEq}, ops["agency"])
	assert.Equal(t, []search.Op{search.OpGte, search.OpLte}, ops["priceRange"])
	assert.Equal(t, []search.Op{search.OpContains}, ops["search"])
	assert.Equal(t, []search.Op{search.OpEq}, ops["status"])
	assert.Nil(t, p.Geo)
	assert.Nil(t, p.Hours)
}

func TestBuild_OriginWithoutRadius(t *testing.T) {
	p, _ := plan(t, search.RestaurantSchema(), url.Values{"lat": {"25.7"}, "lng": {"-80.2"}})
	require.NotNil(t, p.Origin)
	assert.Nil(t, p.Geo)

	p, _ = plan(t, search.RestaurantSchema(), url.Values{"lat": {"25.7"}, "lng": {"-80.2"}, "radius": {"5"}})
	require.NotNil(t, p.Geo)
	assert.Equal(t, 5.0, p.Geo.RadiusMiles)
}

func TestBuild_Orderings(t *testing.T) {
	byRating, _ := plan(t, search.RestaurantSchema(), url.Values{})
	assert.Equal(t, []search.OrderKey{
		{Key: search.KeyRating, Desc: true, Nullable: true},
		{Key: search.KeyID},
	}, byRating.Order)

	byDistance, _ := plan(t, search.RestaurantSchema(), url.Values{"lat": {"1"}, "lng": {"1"}, "sort": {"distance"}})
	require.Len(t, byDistance.Order, 3)
	assert.Equal(t, search.KeyDistance, byDistance.Order[0].Key)
	assert.Equal(t, search.KeyID, byDistance.Order[2].Key)

	for _, mode := range []string{"rating", "name", "newest"} {
		p, _ := plan(t, search.MikvahSchema(), url.Values{"sort": {mode}})
		assert.Equal(t, search.KeyID, p.Order[len(p.Order)-1].Key, mode)
	}
}

func TestPlan_Fingerprint(t *testing.T) {
	a, _ := plan(t, search.RestaurantSchema(), url.Values{"city": {"Miami"}, "agency": {"ORB"}})
	b, _ := plan(t, search.RestaurantSchema(), url.Values{"agency": {"ORB"}, "city": {"Miami"}})
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, a.FilterHash(), b.FilterHash())

	otherFilter, _ := plan(t, search.RestaurantSchema(), url.Values{"city": {"Boca Raton"}, "agency": {"ORB"}})
	assert.NotEqual(t, a.Fingerprint(), otherFilter.Fingerprint())

	otherSort, _ := plan(t, search.RestaurantSchema(), url.Values{"city": {"Miami"}, "agency": {"ORB"}, "sort": {"name"}})
	assert.NotEqual(t, a.Fingerprint(), otherSort.Fingerprint())
	assert.Equal(t, a.FilterHash(), otherSort.FilterHash())

	otherType, _ := plan(t, search.SynagogueSchema(), url.Values{"city": {"Miami"}})
	miami, _ := plan(t, search.RestaurantSchema(), url.Values{"city": {"Miami"}})
	assert.NotEqual(t, miami.FilterHash(), otherType.FilterHash())
}

func TestPlan_Without(t *testing.T) {
	p, _ := plan(t, search.SynagogueSchema(), url.Values{"denomination": {"orthodox"}, "shul_type": {"chabad"}})
	p = p.After([]any{nil, int64(3)})

	relaxed := p.Without("denomination")
	assert.Nil(t, relaxed.Seek)
	for _, pred := range relaxed.Predicates {
		assert.NotEqual(t, "denomination", pred.Column)
	}
	assert.Len(t, relaxed.Predicates, len(p.Predicates)-1)
	assert.NotNil(t, p.Seek)
}

func TestPlan_CompareNullsLast(t *testing.T) {
	p, _ := plan(t, search.RestaurantSchema(), url.Values{})

	rated := []any{4.0, int64(5)}
	better := []any{4.5, int64(9)}
	tied := []any{4.0, int64(6)}
	unrated := []any{nil, int64(1)}

	assert.Negative(t, p.Compare(better, rated))
	assert.Negative(t, p.Compare(rated, tied))
	assert.Positive(t, p.Compare(unrated, rated))
	assert.Negative(t, p.Compare(unrated, []any{nil, int64(2)}))
	assert.Zero(t, p.Compare(rated, []any{4.0, int64(5)}))
}
