package inmem

import (
	"context"
	"testing"

	"github.com/dekarrin/taffy"
	"github.com/dekarrin/taffy/db"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func Test_PublishReportRepo_Create(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	versionID := uuid.New()
	envProd := uuid.New()
	envStaging := uuid.New()

	_, err := s.PublishReports().Create(context.Background(), db.PublishReport{
		ClientVersionID: versionID,
		EnvironmentID:   envProd,
		State:           db.PublishStatePublished,
	})
	if !assert.NoError(err) {
		return
	}

	// same version, same environment: at most one report
	_, err = s.PublishReports().Create(context.Background(), db.PublishReport{
		ClientVersionID: versionID,
		EnvironmentID:   envProd,
		State:           db.PublishStateFailed,
	})
	assert.ErrorIs(err, taffy.ErrDuplicateKey)

	// same version in another environment is fine
	_, err = s.PublishReports().Create(context.Background(), db.PublishReport{
		ClientVersionID: versionID,
		EnvironmentID:   envStaging,
		State:           db.PublishStatePublished,
	})
	assert.NoError(err)

	// another version in the first environment is fine
	_, err = s.PublishReports().Create(context.Background(), db.PublishReport{
		ClientVersionID: uuid.New(),
		EnvironmentID:   envProd,
		State:           db.PublishStatePublished,
	})
	assert.NoError(err)
}

func Test_PublishReportRepo_Create_fillsPublishTime(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	created, err := s.PublishReports().Create(context.Background(), db.PublishReport{
		ClientVersionID: uuid.New(),
		EnvironmentID:   uuid.New(),
		State:           db.PublishStatePublished,
	})
	if !assert.NoError(err) {
		return
	}

	assert.False(created.PublishedOn.IsZero())
}

func Test_PublishReportRepo_GetByVersionAndEnvironment(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	versionID := uuid.New()
	envID := uuid.New()

	created, err := s.PublishReports().Create(context.Background(), db.PublishReport{
		ClientVersionID: versionID,
		EnvironmentID:   envID,
		State:           db.PublishStateFailed,
	})
	if !assert.NoError(err) {
		return
	}

	actual, ok, err := s.PublishReports().GetByVersionAndEnvironment(context.Background(), versionID, envID)
	if !assert.NoError(err) {
		return
	}
	assert.True(ok)
	assert.Equal(created, actual)

	// no report for that pair is an ordinary miss, not an error
	_, ok, err = s.PublishReports().GetByVersionAndEnvironment(context.Background(), versionID, uuid.New())
	assert.NoError(err)
	assert.False(ok)
}

func Test_PublishReportRepo_List(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	versionID := uuid.New()
	envID := uuid.New()

	_, err := s.PublishReports().Create(context.Background(), db.PublishReport{
		ClientVersionID: versionID,
		EnvironmentID:   envID,
	})
	if !assert.NoError(err) {
		return
	}
	_, err = s.PublishReports().Create(context.Background(), db.PublishReport{
		ClientVersionID: versionID,
		EnvironmentID:   uuid.New(),
	})
	if !assert.NoError(err) {
		return
	}
	_, err = s.PublishReports().Create(context.Background(), db.PublishReport{
		ClientVersionID: uuid.New(),
		EnvironmentID:   envID,
	})
	if !assert.NoError(err) {
		return
	}

	byVersion, err := s.PublishReports().List(&db.PublishReportFilter{ClientVersionID: &versionID}).All(context.Background())
	if !assert.NoError(err) {
		return
	}
	assert.Len(byVersion, 2)

	// both filter fields set narrows to the single pair
	both, err := s.PublishReports().List(&db.PublishReportFilter{
		ClientVersionID: &versionID,
		EnvironmentID:   &envID,
	}).All(context.Background())
	if !assert.NoError(err) {
		return
	}
	assert.Len(both, 1)
}

func Test_PublishedClientRepo_Set(t *testing.T) {
	t.Run("inserts a new publication", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		envID := uuid.New()
		schemaID := uuid.New()
		clientID := uuid.New()
		versionID := uuid.New()

		err := s.PublishedClients().Set(context.Background(), db.PublishedClient{
			EnvironmentID:   envID,
			SchemaID:        schemaID,
			ClientID:        clientID,
			ClientVersionID: versionID,
		})
		if !assert.NoError(err) {
			return
		}

		actual, ok, err := s.PublishedClients().Get(context.Background(), envID, schemaID, clientID)
		if !assert.NoError(err) {
			return
		}
		assert.True(ok)
		assert.Equal(versionID, actual.ClientVersionID)
		assert.NotEqual(uuid.Nil, actual.ID)
	})

	t.Run("the first write fixes the version", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		id := uuid.New()
		envID := uuid.New()
		schemaID := uuid.New()
		clientID := uuid.New()
		firstVersion := uuid.New()

		err := s.PublishedClients().Set(context.Background(), db.PublishedClient{
			ID:              id,
			EnvironmentID:   envID,
			SchemaID:        schemaID,
			ClientID:        clientID,
			ClientVersionID: firstVersion,
		})
		if !assert.NoError(err) {
			return
		}

		// a retried Set under the same ID is silently ignored, even with a
		// different version
		err = s.PublishedClients().Set(context.Background(), db.PublishedClient{
			ID:              id,
			EnvironmentID:   envID,
			SchemaID:        schemaID,
			ClientID:        clientID,
			ClientVersionID: uuid.New(),
		})
		if !assert.NoError(err) {
			return
		}

		actual, ok, err := s.PublishedClients().Get(context.Background(), envID, schemaID, clientID)
		if !assert.NoError(err) {
			return
		}
		assert.True(ok)
		assert.Equal(firstVersion, actual.ClientVersionID)

		count, err := s.PublishedClients().List(nil).Count(context.Background())
		if !assert.NoError(err) {
			return
		}
		assert.Equal(1, count)
	})

	t.Run("a known ID is insert-only even under a different triple", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		id := uuid.New()
		envID := uuid.New()
		schemaID := uuid.New()
		clientID := uuid.New()

		err := s.PublishedClients().Set(context.Background(), db.PublishedClient{
			ID:              id,
			EnvironmentID:   envID,
			SchemaID:        schemaID,
			ClientID:        clientID,
			ClientVersionID: uuid.New(),
		})
		if !assert.NoError(err) {
			return
		}

		err = s.PublishedClients().Set(context.Background(), db.PublishedClient{
			ID:              id,
			EnvironmentID:   uuid.New(),
			SchemaID:        uuid.New(),
			ClientID:        uuid.New(),
			ClientVersionID: uuid.New(),
		})
		if !assert.NoError(err) {
			return
		}

		actual, err := s.PublishedClients().GetByID(context.Background(), id)
		if !assert.NoError(err) {
			return
		}
		assert.Equal(envID, actual.EnvironmentID)
		assert.Equal(schemaID, actual.SchemaID)
		assert.Equal(clientID, actual.ClientID)
	})

	t.Run("a fresh ID colliding on the triple is an error", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		envID := uuid.New()
		schemaID := uuid.New()
		clientID := uuid.New()

		err := s.PublishedClients().Set(context.Background(), db.PublishedClient{
			EnvironmentID:   envID,
			SchemaID:        schemaID,
			ClientID:        clientID,
			ClientVersionID: uuid.New(),
		})
		if !assert.NoError(err) {
			return
		}

		err = s.PublishedClients().Set(context.Background(), db.PublishedClient{
			EnvironmentID:   envID,
			SchemaID:        schemaID,
			ClientID:        clientID,
			ClientVersionID: uuid.New(),
		})
		assert.ErrorIs(err, taffy.ErrDuplicateKey)
		assert.Contains(err.Error(), "triple")
	})

	t.Run("differing triples do not collide", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		envID := uuid.New()
		schemaID := uuid.New()
		clientID := uuid.New()

		err := s.PublishedClients().Set(context.Background(), db.PublishedClient{
			EnvironmentID:   envID,
			SchemaID:        schemaID,
			ClientID:        clientID,
			ClientVersionID: uuid.New(),
		})
		if !assert.NoError(err) {
			return
		}

		// change any one element of the triple and it is a fresh row
		err = s.PublishedClients().Set(context.Background(), db.PublishedClient{
			EnvironmentID:   uuid.New(),
			SchemaID:        schemaID,
			ClientID:        clientID,
			ClientVersionID: uuid.New(),
		})
		if !assert.NoError(err) {
			return
		}

		count, err := s.PublishedClients().List(nil).Count(context.Background())
		if !assert.NoError(err) {
			return
		}
		assert.Equal(2, count)
	})
}

func Test_PublishedClientRepo_Get(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	// an unpublished triple is an ordinary miss, not an error
	_, ok, err := s.PublishedClients().Get(context.Background(), uuid.New(), uuid.New(), uuid.New())
	assert.NoError(err)
	assert.False(ok)
}

func Test_PublishedClientRepo_GetByID(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	pc := db.PublishedClient{
		ID:              uuid.New(),
		EnvironmentID:   uuid.New(),
		SchemaID:        uuid.New(),
		ClientID:        uuid.New(),
		ClientVersionID: uuid.New(),
	}
	err := s.PublishedClients().Set(context.Background(), pc)
	if !assert.NoError(err) {
		return
	}

	actual, err := s.PublishedClients().GetByID(context.Background(), pc.ID)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(pc, actual)

	_, err = s.PublishedClients().GetByID(context.Background(), uuid.New())
	assert.ErrorIs(err, taffy.ErrNotFound)
}

func Test_PublishedClientRepo_Delete(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	envID := uuid.New()
	schemaID := uuid.New()
	clientID := uuid.New()

	pc := db.PublishedClient{
		ID:              uuid.New(),
		EnvironmentID:   envID,
		SchemaID:        schemaID,
		ClientID:        clientID,
		ClientVersionID: uuid.New(),
	}
	err := s.PublishedClients().Set(context.Background(), pc)
	if !assert.NoError(err) {
		return
	}

	deleted, err := s.PublishedClients().Delete(context.Background(), pc.ID)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(pc, deleted)

	// the triple can be published again after deletion
	replacement := uuid.New()
	err = s.PublishedClients().Set(context.Background(), db.PublishedClient{
		EnvironmentID:   envID,
		SchemaID:        schemaID,
		ClientID:        clientID,
		ClientVersionID: replacement,
	})
	if !assert.NoError(err) {
		return
	}

	actual, ok, err := s.PublishedClients().Get(context.Background(), envID, schemaID, clientID)
	if !assert.NoError(err) {
		return
	}
	assert.True(ok)
	assert.Equal(replacement, actual.ClientVersionID)
}
