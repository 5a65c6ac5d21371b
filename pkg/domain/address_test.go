package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingPathWithDestination(t *testing.T) {
	template := NewRoutingPath("platform", "")

	path, err := template.WithDestination("source-a")
	require.NoError(t, err)

	assert.Equal(t, NodeAddress("source-a"), path.Destination())
	assert.Equal(t, NodeAddress(""), template.Destination(), "template must not be mutated")
	assert.Equal(t, "platform/source-a", path.String())
	assert.Equal(t, "platform/*", template.String())
}

func TestRoutingPathWithDestinationEmpty(t *testing.T) {
	_, err := RoutingPath{}.WithDestination("x")
	require.Error(t, err)
}

func TestRoutingPathHopsAreCopied(t *testing.T) {
	hops := []NodeAddress{"a", "b"}
	path := NewRoutingPath(hops...)
	hops[0] = "mutated"

	got := path.Hops()
	got[1] = "mutated"

	assert.Equal(t, []NodeAddress{"a", "b"}, path.Hops())
}

func TestParseRoutingPath(t *testing.T) {
	path := ParseRoutingPath([]string{" root ", "platform", "*"})

	assert.Equal(t, 3, path.Len())
	assert.True(t, path.Destination().IsZero())
	assert.Equal(t, []string{"root", "platform"}, path.Segments())
}

func TestSourceRoleText(t *testing.T) {
	var r SourceRole
	require.NoError(t, r.UnmarshalText([]byte("order_executioner")))
	assert.Equal(t, SourceRoleOrderExecutioner, r)

	require.NoError(t, r.UnmarshalText([]byte("quotes")))
	assert.Equal(t, SourceRoleUnknown, r)

	text, err := SourceRoleDataProvider.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "data_provider", string(text))
}
