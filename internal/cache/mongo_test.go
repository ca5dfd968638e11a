package cache

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobToRegex(t *testing.T) {
	cases := []struct {
		pattern string
		match   []string
		noMatch []string
	}{
		{"market:*", []string{"market:bitcoin", "market:"}, []string{"topic:abc", "xmarket:btc"}},
		{"topic:???", []string{"topic:abc"}, []string{"topic:ab", "topic:abcd"}},
		{"articles:recent", []string{"articles:recent"}, []string{"articles:recent2"}},
		{"a.b*", []string{"a.bc"}, []string{"aXbc"}},
	}

	for _, tc := range cases {
		re, err := regexp.Compile(globToRegex(tc.pattern))
		require.NoError(t, err, tc.pattern)
		for _, s := range tc.match {
			assert.True(t, re.MatchString(s), "%s should match %s", tc.pattern, s)
		}
		for _, s := range tc.noMatch {
			assert.False(t, re.MatchString(s), "%s should not match %s", tc.pattern, s)
		}
	}
}
