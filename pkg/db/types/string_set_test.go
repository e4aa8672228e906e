package dbtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSetScan(t *testing.T) {
	cases := []struct {
		name string
		src  any
		want StringSet
	}{
		{name: "nil", src: nil, want: StringSet{}},
		{name: "empty literal", src: "{}", want: StringSet{}},
		{name: "plain", src: "{read,write}", want: StringSet{"read", "write"}},
		{name: "quoted", src: `{"read","write"}`, want: StringSet{"read", "write"}},
		{name: "bytes", src: []byte("{activate}"), want: StringSet{"activate"}},
		{name: "whitespace", src: "{ read , write }", want: StringSet{"read", "write"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got StringSet
			require.NoError(t, got.Scan(tc.src))
			assert.Equal(t, tc.want, got)
		})
	}

	var got StringSet
	assert.Error(t, got.Scan(42))
}

func TestStringSetValueRoundTrip(t *testing.T) {
	set := StringSet{"read", "write", "activate"}
	value, err := set.Value()
	require.NoError(t, err)
	assert.Equal(t, "{read,write,activate}", value)

	var back StringSet
	require.NoError(t, back.Scan(value))
	assert.Equal(t, set, back)

	empty := StringSet{}
	value, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", value)
}

func TestStringSetContains(t *testing.T) {
	set := StringSet{"read", "write"}
	assert.True(t, set.Contains("read"))
	assert.False(t, set.Contains("Read"))
	assert.False(t, set.Contains("wipe"))
}

func TestStringSetNormalized(t *testing.T) {
	set := StringSet{" write", "read", "write", "", "read "}
	assert.Equal(t, StringSet{"read", "write"}, set.Normalized())
	assert.Equal(t, StringSet{}, StringSet{"", "  "}.Normalized())
}
