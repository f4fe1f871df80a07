package similartext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	require := require.New(t)

	var names []string
	require.Empty(Find(names, "school"))

	names = []string{"school", "program", "code", "campus"}
	require.Equal("maybe you mean school?", Find(names, "shcool"))
	require.Equal("maybe you mean school?", Find(names, "school"))
	require.Empty(Find(names, ""))
	require.Empty(Find(names, "registrar_of_records"))

	// Equidistant candidates are all offered.
	names = []string{"aka", "ake", "foo"}
	require.Equal("maybe you mean aka or ake?", Find(names, "aki"))
}

func TestDistance(t *testing.T) {
	require := require.New(t)

	require.Equal(0, distance("code", "code"))
	require.Equal(1, distance("code", "mode"))
	require.Equal(2, distance("shcool", "school"))
	require.Equal(4, distance("", "name"))
}
