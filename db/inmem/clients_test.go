package inmem

import (
	"context"
	"testing"

	"github.com/dekarrin/taffy"
	"github.com/dekarrin/taffy/db"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func Test_ClientRepo_Create(t *testing.T) {
	t.Run("generates an ID when none is given", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		created, err := s.Clients().Create(context.Background(), db.Client{Name: "checkout"})
		if !assert.NoError(err) {
			return
		}

		assert.NotEqual(uuid.Nil, created.ID)
		assert.Equal("checkout", created.Name)
	})

	t.Run("keeps the caller's ID when one is given", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		id := uuid.MustParse("62fe20af-2a48-4b13-9f29-12b6549d0c2a")
		created, err := s.Clients().Create(context.Background(), db.Client{ID: id, Name: "checkout"})
		if !assert.NoError(err) {
			return
		}

		assert.Equal(id, created.ID)
	})

	t.Run("rejects a second client with the same name", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		_, err := s.Clients().Create(context.Background(), db.Client{Name: "checkout"})
		if !assert.NoError(err) {
			return
		}

		_, err = s.Clients().Create(context.Background(), db.Client{Name: "checkout"})
		assert.ErrorIs(err, taffy.ErrDuplicateKey)
		assert.Contains(err.Error(), "Name")
	})

	t.Run("rejects a second client with the same ID", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		id := uuid.New()
		_, err := s.Clients().Create(context.Background(), db.Client{ID: id, Name: "checkout"})
		if !assert.NoError(err) {
			return
		}

		_, err = s.Clients().Create(context.Background(), db.Client{ID: id, Name: "search"})
		assert.ErrorIs(err, taffy.ErrDuplicateKey)
		assert.Contains(err.Error(), "ID")
	})
}

func Test_ClientRepo_Get(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	created, err := s.Clients().Create(context.Background(), db.Client{Name: "checkout"})
	if !assert.NoError(err) {
		return
	}

	actual, err := s.Clients().Get(context.Background(), created.ID)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(created, actual)

	_, err = s.Clients().Get(context.Background(), uuid.New())
	assert.ErrorIs(err, taffy.ErrNotFound)
}

func Test_ClientRepo_GetByName(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	created, err := s.Clients().Create(context.Background(), db.Client{Name: "checkout"})
	if !assert.NoError(err) {
		return
	}

	actual, ok, err := s.Clients().GetByName(context.Background(), "checkout")
	if !assert.NoError(err) {
		return
	}
	assert.True(ok)
	assert.Equal(created, actual)

	// a name held by no client is an ordinary miss, not an error
	_, ok, err = s.Clients().GetByName(context.Background(), "no-such-client")
	assert.NoError(err)
	assert.False(ok)
}

func Test_ClientRepo_GetMany(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	c1, err := s.Clients().Create(context.Background(), db.Client{Name: "checkout"})
	if !assert.NoError(err) {
		return
	}
	c2, err := s.Clients().Create(context.Background(), db.Client{Name: "search"})
	if !assert.NoError(err) {
		return
	}

	missing := uuid.New()
	got, err := s.Clients().GetMany(context.Background(), []uuid.UUID{c1.ID, missing, c2.ID})
	if !assert.NoError(err) {
		return
	}

	// the unknown ID is omitted silently
	assert.Len(got, 2)
	assert.Equal(c1, got[c1.ID])
	assert.Equal(c2, got[c2.ID])
	_, ok := got[missing]
	assert.False(ok)
}

func Test_ClientRepo_Update(t *testing.T) {
	t.Run("replaces the stored client", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		schemaID := uuid.New()
		created, err := s.Clients().Create(context.Background(), db.Client{Name: "checkout"})
		if !assert.NoError(err) {
			return
		}

		created.Name = "checkout-v2"
		created.SchemaID = schemaID
		err = s.Clients().Update(context.Background(), created)
		if !assert.NoError(err) {
			return
		}

		actual, err := s.Clients().Get(context.Background(), created.ID)
		if !assert.NoError(err) {
			return
		}
		assert.Equal("checkout-v2", actual.Name)
		assert.Equal(schemaID, actual.SchemaID)

		// the old name is free again, the new one resolves
		_, ok, err := s.Clients().GetByName(context.Background(), "checkout")
		assert.NoError(err)
		assert.False(ok)
		_, ok, err = s.Clients().GetByName(context.Background(), "checkout-v2")
		assert.NoError(err)
		assert.True(ok)
	})

	t.Run("renaming to a taken name is a duplicate", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		_, err := s.Clients().Create(context.Background(), db.Client{Name: "checkout"})
		if !assert.NoError(err) {
			return
		}
		other, err := s.Clients().Create(context.Background(), db.Client{Name: "search"})
		if !assert.NoError(err) {
			return
		}

		other.Name = "checkout"
		err = s.Clients().Update(context.Background(), other)
		assert.ErrorIs(err, taffy.ErrDuplicateKey)
	})

	t.Run("an unknown ID changes nothing and is not an error", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		err := s.Clients().Update(context.Background(), db.Client{ID: uuid.New(), Name: "ghost"})
		assert.NoError(err)

		_, ok, err := s.Clients().GetByName(context.Background(), "ghost")
		assert.NoError(err)
		assert.False(ok)
	})
}

func Test_ClientRepo_Delete(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	created, err := s.Clients().Create(context.Background(), db.Client{Name: "checkout"})
	if !assert.NoError(err) {
		return
	}

	deleted, err := s.Clients().Delete(context.Background(), created.ID)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(created, deleted)

	_, err = s.Clients().Get(context.Background(), created.ID)
	assert.ErrorIs(err, taffy.ErrNotFound)
	_, ok, err := s.Clients().GetByName(context.Background(), "checkout")
	assert.NoError(err)
	assert.False(ok)

	_, err = s.Clients().Delete(context.Background(), created.ID)
	assert.ErrorIs(err, taffy.ErrNotFound)
}

func Test_ClientRepo_List(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	schemaID := uuid.New()
	_, err := s.Clients().Create(context.Background(), db.Client{Name: "checkout", SchemaID: schemaID})
	if !assert.NoError(err) {
		return
	}
	_, err = s.Clients().Create(context.Background(), db.Client{Name: "search", SchemaID: schemaID})
	if !assert.NoError(err) {
		return
	}
	_, err = s.Clients().Create(context.Background(), db.Client{Name: "admin"})
	if !assert.NoError(err) {
		return
	}

	all, err := s.Clients().List(nil).All(context.Background())
	if !assert.NoError(err) {
		return
	}
	assert.Len(all, 3)

	matched, err := s.Clients().List(&db.ClientFilter{SchemaID: &schemaID}).All(context.Background())
	if !assert.NoError(err) {
		return
	}
	assert.Len(matched, 2)
	for _, c := range matched {
		assert.Equal(schemaID, c.SchemaID)
	}
}

func Test_ClientRepo_List_reflectsCurrentData(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	listing := s.Clients().List(nil)

	// built before any data exists; each execution sees current state
	count, err := listing.Count(context.Background())
	if !assert.NoError(err) {
		return
	}
	assert.Equal(0, count)

	_, err = s.Clients().Create(context.Background(), db.Client{Name: "checkout"})
	if !assert.NoError(err) {
		return
	}

	count, err = listing.Count(context.Background())
	if !assert.NoError(err) {
		return
	}
	assert.Equal(1, count)
}

func Test_ClientVersionRepo_Create(t *testing.T) {
	t.Run("rejects a second version with the same external ID", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		_, err := s.ClientVersions().Create(context.Background(), db.ClientVersion{ExternalID: "checkout-v41"})
		if !assert.NoError(err) {
			return
		}

		_, err = s.ClientVersions().Create(context.Background(), db.ClientVersion{ExternalID: "checkout-v41"})
		assert.ErrorIs(err, taffy.ErrDuplicateKey)
		assert.Contains(err.Error(), "ExternalID")
	})

	t.Run("de-duplicates the initial tags", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		created, err := s.ClientVersions().Create(context.Background(), db.ClientVersion{
			ExternalID: "checkout-v41",
			Tags: []db.Tag{
				{Key: "team", Value: "payments"},
				{Key: "team", Value: "payments"},
				{Key: "stage", Value: "canary"},
			},
		})
		if !assert.NoError(err) {
			return
		}

		expect := []db.Tag{
			{Key: "team", Value: "payments"},
			{Key: "stage", Value: "canary"},
		}
		assert.Equal(expect, created.Tags)

		actual, err := s.ClientVersions().Get(context.Background(), created.ID)
		if !assert.NoError(err) {
			return
		}
		assert.Equal(expect, actual.Tags)
	})

	t.Run("fills in a creation time", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		created, err := s.ClientVersions().Create(context.Background(), db.ClientVersion{ExternalID: "checkout-v41"})
		if !assert.NoError(err) {
			return
		}

		assert.False(created.Created.IsZero())
	})
}

func Test_ClientVersionRepo_GetByExternalID(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	created, err := s.ClientVersions().Create(context.Background(), db.ClientVersion{ExternalID: "checkout-v41"})
	if !assert.NoError(err) {
		return
	}

	actual, ok, err := s.ClientVersions().GetByExternalID(context.Background(), "checkout-v41")
	if !assert.NoError(err) {
		return
	}
	assert.True(ok)
	assert.Equal(created, actual)

	_, ok, err = s.ClientVersions().GetByExternalID(context.Background(), "checkout-v999")
	assert.NoError(err)
	assert.False(ok)
}

func Test_ClientVersionRepo_UpdateTags(t *testing.T) {
	testCases := []struct {
		name   string
		tags   []db.Tag
		expect []db.Tag
	}{
		{
			name: "replaces the stored tags",
			tags: []db.Tag{
				{Key: "stage", Value: "ga"},
			},
			expect: []db.Tag{
				{Key: "stage", Value: "ga"},
			},
		},
		{
			name: "de-duplicates when more than one element",
			tags: []db.Tag{
				{Key: "stage", Value: "ga"},
				{Key: "stage", Value: "ga"},
				{Key: "team", Value: "payments"},
			},
			expect: []db.Tag{
				{Key: "stage", Value: "ga"},
				{Key: "team", Value: "payments"},
			},
		},
		{
			name:   "clears tags with an empty list",
			tags:   []db.Tag{},
			expect: []db.Tag{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			s := New()
			defer s.Close()

			created, err := s.ClientVersions().Create(context.Background(), db.ClientVersion{
				ClientID:   uuid.New(),
				ExternalID: "checkout-v41",
				Tags:       []db.Tag{{Key: "initial", Value: "yes"}},
			})
			if !assert.NoError(err) {
				return
			}

			err = s.ClientVersions().UpdateTags(context.Background(), created.ID, tc.tags)
			if !assert.NoError(err) {
				return
			}

			actual, err := s.ClientVersions().Get(context.Background(), created.ID)
			if !assert.NoError(err) {
				return
			}

			assert.Equal(tc.expect, actual.Tags)

			// everything but the tags is untouched
			assert.Equal(created.ID, actual.ID)
			assert.Equal(created.ClientID, actual.ClientID)
			assert.Equal(created.ExternalID, actual.ExternalID)
			assert.True(created.Created.Equal(actual.Created))
		})
	}

	t.Run("an unknown ID changes nothing and is not an error", func(t *testing.T) {
		assert := assert.New(t)
		s := New()
		defer s.Close()

		err := s.ClientVersions().UpdateTags(context.Background(), uuid.New(), []db.Tag{{Key: "a", Value: "1"}})
		assert.NoError(err)
	})
}

func Test_ClientVersionRepo_List(t *testing.T) {
	assert := assert.New(t)
	s := New()
	defer s.Close()

	clientID := uuid.New()
	_, err := s.ClientVersions().Create(context.Background(), db.ClientVersion{ClientID: clientID, ExternalID: "checkout-v1"})
	if !assert.NoError(err) {
		return
	}
	_, err = s.ClientVersions().Create(context.Background(), db.ClientVersion{ClientID: clientID, ExternalID: "checkout-v2"})
	if !assert.NoError(err) {
		return
	}
	_, err = s.ClientVersions().Create(context.Background(), db.ClientVersion{ClientID: uuid.New(), ExternalID: "search-v1"})
	if !assert.NoError(err) {
		return
	}

	versions, err := s.ClientVersions().List(&db.ClientVersionFilter{ClientID: &clientID}).All(context.Background())
	if !assert.NoError(err) {
		return
	}

	assert.Len(versions, 2)
	for _, v := range versions {
		assert.Equal(clientID, v.ClientID)
	}
}
