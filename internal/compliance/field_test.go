package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestSnapshotFromJSON(t *testing.T) {
	snap, errDecode := SnapshotFromJSON(datatypes.JSON([]byte(`{"gl_limit": 1000000, "endorsements": ["AI"]}`)))
	require.NoError(t, errDecode)
	value, ok := snap.ResolveNumber("gl_limit")
	assert.True(t, ok)
	assert.InDelta(t, 1000000, value, 0.001)

	empty, errEmpty := SnapshotFromJSON(nil)
	require.NoError(t, errEmpty)
	assert.Empty(t, empty)

	_, errBad := SnapshotFromJSON(datatypes.JSON([]byte(`{broken`)))
	assert.Error(t, errBad)
}

func TestResolveNumber(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    float64
		present bool
	}{
		{"float", 250000.0, 250000, true},
		{"int", 250000, 250000, true},
		{"numeric string", "250000", 250000, true},
		{"currency string", "$2,000,000", 2000000, true},
		{"zero is a value", 0.0, 0, true},
		{"malformed string", "one million", 0, false},
		{"negative resolves absent", -10.0, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Snapshot{"gl_limit": tt.raw}
			got, present := snap.ResolveNumber("gl_limit")
			assert.Equal(t, tt.present, present)
			if tt.present {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}

	_, present := Snapshot{}.ResolveNumber("gl_limit")
	assert.False(t, present, "absent field resolves absent, not zero")
}

func TestResolveDate(t *testing.T) {
	snap := Snapshot{
		"iso":       "2026-09-30",
		"rfc3339":   "2026-09-30T00:00:00Z",
		"us":        "09/30/2026",
		"garbage":   "next fall",
		"wrongkind": 42.0,
	}

	for _, field := range []string{"iso", "rfc3339", "us"} {
		parsed, ok := snap.ResolveDate(field)
		require.True(t, ok, "field %s", field)
		assert.Equal(t, 2026, parsed.Year())
		assert.Equal(t, 30, parsed.Day())
	}

	_, ok := snap.ResolveDate("garbage")
	assert.False(t, ok)
	_, ok = snap.ResolveDate("wrongkind")
	assert.False(t, ok)
	_, ok = snap.ResolveDate("absent")
	assert.False(t, ok)
}

func TestResolveList_NormalizesAndDeduplicates(t *testing.T) {
	snap := Snapshot{
		"endorsements": []any{" Additional Insured ", "additional insured", "Waiver of Subrogation", "", "  "},
	}
	list := snap.ResolveList("endorsements")
	assert.Equal(t, []string{"additional insured", "waiver of subrogation"}, list)
}

func TestResolveList_AbsentIsEmptySet(t *testing.T) {
	list := Snapshot{}.ResolveList("endorsements")
	require.NotNil(t, list)
	assert.Empty(t, list)
}

func TestResolveList_CommaSeparatedString(t *testing.T) {
	snap := Snapshot{"endorsements": "Additional Insured, Primary and Noncontributory"}
	list := snap.ResolveList("endorsements")
	assert.Equal(t, []string{"additional insured", "primary and noncontributory"}, list)
}

func TestResolvePresence(t *testing.T) {
	snap := Snapshot{
		"policy":     "CPP-1",
		"flag_true":  true,
		"flag_false": false,
		"blank":      "   ",
		"zero":       0.0,
		"list":       []any{"a"},
		"empty_list": []any{},
	}
	assert.True(t, snap.ResolvePresence("policy"))
	assert.True(t, snap.ResolvePresence("flag_true"))
	assert.True(t, snap.ResolvePresence("zero"), "numeric zero is still a value")
	assert.True(t, snap.ResolvePresence("list"))
	assert.False(t, snap.ResolvePresence("flag_false"))
	assert.False(t, snap.ResolvePresence("blank"))
	assert.False(t, snap.ResolvePresence("empty_list"))
	assert.False(t, snap.ResolvePresence("absent"))
}
