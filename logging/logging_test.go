package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_New(t *testing.T) {
	testCases := []struct {
		name       string
		provider   Provider
		filename   string
		expectType Logger
		expectErr  bool
	}{
		{
			name:       "jellog log",
			provider:   Jellog,
			filename:   "test-jellog.log",
			expectType: jellogLogger{},
		},
		{
			name:       "jellog log without file",
			provider:   Jellog,
			filename:   "",
			expectType: jellogLogger{},
		},
		{
			name:      "None provider is an error",
			provider:  None,
			filename:  "test-none.log",
			expectErr: true,
		},
		{
			name:      "unknown provider is an error",
			provider:  Provider(-1),
			filename:  "test-unknown.log",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			filePath := tc.filename
			if filePath != "" {
				filePath = filepath.Join(t.TempDir(), tc.filename)
			}

			actual, err := New(tc.provider, filePath)

			if tc.expectErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
				assert.IsType(tc.expectType, actual)
			}
		})
	}
}

func Test_ParseProvider(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expect    Provider
		expectErr bool
	}{
		{
			name:   "jellog",
			input:  "jellog",
			expect: Jellog,
		},
		{
			name:   "jellog uppercase",
			input:  "JELLOG",
			expect: Jellog,
		},
		{
			name:   "none",
			input:  "none",
			expect: None,
		},
		{
			name:   "empty string is None",
			input:  "",
			expect: None,
		},
		{
			name:      "unknown provider",
			input:     "syslog",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			actual, err := ParseProvider(tc.input)

			if tc.expectErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
				assert.Equal(tc.expect, actual)
			}
		})
	}
}

func Test_Provider_String(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("none", None.String())
	assert.Equal("jellog", Jellog.String())
	assert.Equal("Provider(12)", Provider(12).String())
}
