package kstate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kynesim/kstate/internal/constants"
)

func TestValidateNameBoundary(t *testing.T) {
	ok254 := strings.Repeat("a", constants.MaxNameLength)
	require.NoError(t, validateName(ok254))

	bad255 := strings.Repeat("a", constants.MaxNameLength+1)
	require.Error(t, validateName(bad255))
}

func TestValidateNameGrammar(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"", true},
		{".leading", true},
		{"trailing.", true},
		{"a..b", true},
		{"a_b", true},
		{"a b", true},
		{"a-b", true},
		{"Fred.A", false},
		{"a.b.c", false},
		{"A1.b2.C3", false},
		{"single", false},
	}

	for _, tc := range cases {
		err := validateName(tc.name)
		if tc.wantErr {
			require.Errorf(t, err, "expected error for name %q", tc.name)
			require.ErrorIs(t, err, ErrInvalidArgument)
		} else {
			require.NoErrorf(t, err, "expected no error for name %q", tc.name)
		}
	}
}

func TestCanonicalAndUserName(t *testing.T) {
	canonical := canonicalName("Fred.A")
	require.Equal(t, constants.NamePrefix+"Fred.A", canonical)
	require.Equal(t, "Fred.A", userName(canonical))
}

func TestUniqueNameIsDistinctAndPrefixed(t *testing.T) {
	a := UniqueName("")
	b := UniqueName("")

	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, constants.NamePrefix))
	require.True(t, strings.HasPrefix(b, constants.NamePrefix))
}

func TestUniqueNameCustomPrefix(t *testing.T) {
	name := UniqueName("/kstatectl.")
	require.True(t, strings.HasPrefix(name, "/kstatectl."))
}

func TestValidatePerms(t *testing.T) {
	require.Error(t, validatePerms(0))
	require.Error(t, validatePerms(Perm(4)))
	require.NoError(t, validatePerms(PermRead))
	require.NoError(t, validatePerms(PermWrite))
	require.NoError(t, validatePerms(PermRead|PermWrite))
}

func TestNormalizePerms(t *testing.T) {
	require.Equal(t, PermRead|PermWrite, normalizePerms(PermWrite))
	require.Equal(t, PermRead, normalizePerms(PermRead))
	require.Equal(t, PermRead|PermWrite, normalizePerms(PermRead|PermWrite))
}
