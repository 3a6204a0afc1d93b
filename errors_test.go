package taffy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Error_Error(t *testing.T) {
	testCases := []struct {
		name   string
		err    Error
		expect string
	}{
		{
			name:   "message only",
			err:    NewError("something went wrong"),
			expect: "something went wrong",
		},
		{
			name:   "message with one cause",
			err:    NewError("could not save client", ErrDB),
			expect: "could not save client: " + ErrDB.Error(),
		},
		{
			name:   "message with multiple causes uses only the first",
			err:    NewError("could not save client", ErrDuplicateKey, ErrDB),
			expect: "could not save client: " + ErrDuplicateKey.Error(),
		},
		{
			name:   "no message falls back to first cause",
			err:    NewError("", ErrNotFound),
			expect: ErrNotFound.Error(),
		},
		{
			name:   "no message and no causes",
			err:    NewError(""),
			expect: "",
		},
		{
			name:   "formatted message",
			err:    NewErrorf([]error{ErrDuplicateKey}, "a %s with that %s already exists", "client", "Name"),
			expect: "a client with that Name already exists: " + ErrDuplicateKey.Error(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			assert.Equal(tc.expect, tc.err.Error())
		})
	}
}

func Test_Error_Is(t *testing.T) {
	testCases := []struct {
		name   string
		err    Error
		target error
		expect bool
	}{
		{
			name:   "is direct cause",
			err:    NewError("insert failed", ErrDuplicateKey),
			target: ErrDuplicateKey,
			expect: true,
		},
		{
			name:   "is any of multiple causes",
			err:    NewError("insert failed", ErrDuplicateKey, ErrDB),
			target: ErrDB,
			expect: true,
		},
		{
			name:   "is cause of nested Error",
			err:    NewError("insert failed", NewError("engine rejected write", ErrDuplicateKey)),
			target: ErrDuplicateKey,
			expect: true,
		},
		{
			name:   "is not an unrelated sentinel",
			err:    NewError("insert failed", ErrDuplicateKey),
			target: ErrNotFound,
			expect: false,
		},
		{
			name:   "is equivalent Error value",
			err:    NewError("insert failed", ErrDB),
			target: NewError("insert failed", ErrDB),
			expect: true,
		},
		{
			name:   "is not Error value with different message",
			err:    NewError("insert failed", ErrDB),
			target: NewError("update failed", ErrDB),
			expect: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			assert.Equal(tc.expect, errors.Is(tc.err, tc.target))
		})
	}
}

func Test_Error_Is_wrappedSentinel(t *testing.T) {
	assert := assert.New(t)

	// a cause produced by fmt.Errorf wrapping a sentinel is still detected
	// through the stdlib side of the errors API
	wrapped := fmt.Errorf("context: %w", ErrNotFound)
	err := NewError("lookup failed", wrapped)

	assert.True(errors.Is(err, wrapped))
}
