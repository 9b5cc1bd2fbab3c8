package checks

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeIDs(cs []Check) []string {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID())
	}
	sort.Strings(ids)
	return ids
}

func TestActiveDefaultSet(t *testing.T) {
	active := Active(nil, nil, Options{})
	require.Len(t, active, len(registry), "all built-in checks are enabled by default")

	ids := activeIDs(active)
	assert.Contains(t, ids, "S1-probes")
	assert.Contains(t, ids, "S2-golden-fact-recall")
	assert.Contains(t, ids, "firewall-status")
}

func TestActiveExplicitSelection(t *testing.T) {
	active := Active(nil, []string{"S1-probes", "firewall-status"}, Options{})
	assert.Equal(t, []string{"S1-probes", "firewall-status"}, activeIDs(active))
}

func TestActiveWildcardPatterns(t *testing.T) {
	active := Active(nil, []string{"S1-*"}, Options{})
	assert.Equal(t, []string{"S1-probes"}, activeIDs(active), "the literal S1- prefix does not match S10-")

	active = Active(nil, []string{"S?-*"}, Options{})
	ids := activeIDs(active)
	assert.Contains(t, ids, "S1-probes")
	assert.Contains(t, ids, "S2-golden-fact-recall")
	assert.NotContains(t, ids, "S10-content-pipeline")
	assert.NotContains(t, ids, "firewall-status")
}

func TestActiveUnknownPatternYieldsNothing(t *testing.T) {
	active := Active(nil, []string{"no-such-check"}, Options{})
	assert.Empty(t, active)
}

func TestActiveDuplicatePatternsInstantiateOnce(t *testing.T) {
	active := Active(nil, []string{"S1-probes", "S1-probes", "S1-*"}, Options{})
	assert.Equal(t, []string{"S1-probes"}, activeIDs(active))
}

func TestDefinitionsSortedAndUnique(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 11)

	seen := make(map[string]bool)
	for i, def := range defs {
		assert.NotEmpty(t, def.ID)
		assert.NotEmpty(t, def.Description)
		assert.NotNil(t, def.New)
		assert.False(t, seen[def.ID], "duplicate check ID %s", def.ID)
		seen[def.ID] = true
		if i > 0 {
			assert.Less(t, defs[i-1].ID, def.ID)
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 5, o.GoldenFactTrials)
	assert.Positive(t, o.HealthTimeout)
	assert.Positive(t, o.InteractiveTimeout)
}
