package inmem

import (
	"context"
	"testing"

	"github.com/dekarrin/taffy"
	"github.com/dekarrin/taffy/db"
	"github.com/stretchr/testify/assert"
)

func Test_EnvironmentRepo_roundTrip(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	created, err := s.Environments().Create(context.Background(), db.Environment{Name: "prod", Description: "production"})
	if !assert.NoError(err) {
		return
	}

	actual, err := s.Environments().Get(context.Background(), created.ID)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(created, actual)

	actual, ok, err := s.Environments().GetByName(context.Background(), "prod")
	if !assert.NoError(err) {
		return
	}
	assert.True(ok)
	assert.Equal(created, actual)

	_, err = s.Environments().Create(context.Background(), db.Environment{Name: "prod"})
	assert.ErrorIs(err, taffy.ErrDuplicateKey)
	assert.Contains(err.Error(), "Name")
}

func Test_EnvironmentRepo_GetByName_absent(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	_, ok, err := s.Environments().GetByName(context.Background(), "prod")
	assert.NoError(err)
	assert.False(ok)
}

func Test_EnvironmentRepo_Delete(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	created, err := s.Environments().Create(context.Background(), db.Environment{Name: "staging"})
	if !assert.NoError(err) {
		return
	}

	deleted, err := s.Environments().Delete(context.Background(), created.ID)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(created, deleted)

	// the name is free for reuse once the holder is gone
	_, err = s.Environments().Create(context.Background(), db.Environment{Name: "staging"})
	assert.NoError(err)

	_, err = s.Environments().Delete(context.Background(), created.ID)
	assert.ErrorIs(err, taffy.ErrNotFound)
}
