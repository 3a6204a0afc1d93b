package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Lookup(t *testing.T) {
	testCases := []struct {
		name       string
		input      string
		expectOK   bool
		expectName string
	}{
		{name: "skip", input: "skip", expectOK: true, expectName: "skip"},
		{name: "include", input: "include", expectOK: true, expectName: "include"},
		{name: "deprecated", input: "deprecated", expectOK: true, expectName: "deprecated"},
		{name: "specifiedBy", input: "specifiedBy", expectOK: true, expectName: "specifiedBy"},
		{name: "with at-sign prefix", input: "@skip", expectOK: true, expectName: "skip"},
		{name: "not built in", input: "defer", expectOK: false},
		{name: "names are case-sensitive", input: "Skip", expectOK: false},
		{name: "empty", input: "", expectOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			def, ok := Lookup(tc.input)

			assert.Equal(tc.expectOK, ok)
			if tc.expectOK {
				assert.Equal(tc.expectName, def.Name)
				assert.NotEmpty(def.Locations)
			}
		})
	}
}

func Test_Lookup_returnsCopy(t *testing.T) {
	assert := assert.New(t)

	def, ok := Lookup("skip")
	if !assert.True(ok) {
		return
	}

	def.Locations[0] = Location("MANGLED")
	def.Args[0].Name = "mangled"

	fresh, _ := Lookup("skip")
	assert.Equal(LocationField, fresh.Locations[0])
	assert.Equal("if", fresh.Args[0].Name)
}

func Test_IsBuiltIn(t *testing.T) {
	assert := assert.New(t)

	assert.True(IsBuiltIn("deprecated"))
	assert.True(IsBuiltIn("@include"))
	assert.False(IsBuiltIn("stream"))
}

func Test_Names(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"deprecated", "include", "skip", "specifiedBy"}, Names())
}

func Test_deprecatedHasDefaultReason(t *testing.T) {
	assert := assert.New(t)

	def, ok := Lookup("deprecated")
	if !assert.True(ok) {
		return
	}

	if !assert.Len(def.Args, 1) {
		return
	}
	assert.Equal("reason", def.Args[0].Name)
	assert.Equal(`"No longer supported"`, def.Args[0].DefaultValue)
}
