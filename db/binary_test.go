package db

import (
	"testing"
	"time"

	"github.com/dekarrin/taffy/dochash"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func Test_Query_MarshalBinary(t *testing.T) {
	testCases := []struct {
		name  string
		input Query
	}{
		{
			name:  "zero value",
			input: Query{},
		},
		{
			name: "filled",
			input: Query{
				ID:       uuid.MustParse("9a463788-d1d1-4d34-a3c6-9547ae81bb22"),
				SchemaID: uuid.MustParse("29f2b9d9-4fe6-4bd4-a9b7-2d0bb1ebe3e1"),
				Hash: dochash.Hash{
					Hash:      "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
					Algorithm: dochash.AlgorithmSHA256,
					Format:    dochash.FormatHex,
				},
				ExternalHashes: []dochash.Hash{
					{Hash: "legacy-1", Algorithm: dochash.AlgorithmSHA1, Format: dochash.FormatHex},
					{Hash: "legacy-2", Algorithm: dochash.AlgorithmMD5, Format: dochash.FormatBase64},
				},
				Source: "query GetThing { thing { id } }",
			},
		},
		{
			name: "no external hashes",
			input: Query{
				ID:     uuid.MustParse("49f2dc86-3b9d-441b-8106-e26311a4ea4c"),
				Hash:   dochash.Hash{Hash: "abc", Algorithm: dochash.AlgorithmSHA256, Format: dochash.FormatHex},
				Source: "{ __typename }",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			data, err := tc.input.MarshalBinary()
			if !assert.NoError(err) {
				return
			}

			var actual Query
			err = actual.UnmarshalBinary(data)
			if !assert.NoError(err) {
				return
			}

			assert.Equal(tc.input, actual)
		})
	}
}

func Test_ClientVersion_MarshalBinary(t *testing.T) {
	assert := assert.New(t)

	input := ClientVersion{
		ID:         uuid.MustParse("dc3ad022-1cf3-4fe0-97ad-7c4357e6ba22"),
		ClientID:   uuid.MustParse("29f2b9d9-4fe6-4bd4-a9b7-2d0bb1ebe3e1"),
		ExternalID: "checkout-v41",
		QueryIDs: []uuid.UUID{
			uuid.MustParse("9a463788-d1d1-4d34-a3c6-9547ae81bb22"),
			uuid.MustParse("49f2dc86-3b9d-441b-8106-e26311a4ea4c"),
		},
		Tags: []Tag{
			{Key: "team", Value: "payments"},
			{Key: "stage", Value: "canary"},
		},
		Created: Timestamp(time.Unix(1703923200, 0)),
	}

	data, err := input.MarshalBinary()
	if !assert.NoError(err) {
		return
	}

	var actual ClientVersion
	err = actual.UnmarshalBinary(data)
	if !assert.NoError(err) {
		return
	}

	assert.Equal(input.ID, actual.ID)
	assert.Equal(input.ClientID, actual.ClientID)
	assert.Equal(input.ExternalID, actual.ExternalID)
	assert.Equal(input.QueryIDs, actual.QueryIDs)
	assert.Equal(input.Tags, actual.Tags)
	assert.True(input.Created.Equal(actual.Created), "created time did not survive the round trip")
}

func Test_Snapshot_MarshalBinary(t *testing.T) {
	assert := assert.New(t)

	envID := uuid.MustParse("0192d407-1948-4e30-a1a4-58e59b112a0b")
	schemaID := uuid.MustParse("29f2b9d9-4fe6-4bd4-a9b7-2d0bb1ebe3e1")
	clientID := uuid.MustParse("62fe20af-2a48-4b13-9f29-12b6549d0c2a")

	input := Snapshot{
		Environments: []Environment{
			{ID: envID, Name: "prod", Description: "production"},
		},
		Schemas: []Schema{
			{ID: schemaID, Name: "storefront"},
		},
		Clients: []Client{
			{ID: clientID, Name: "checkout", SchemaID: schemaID},
		},
		Queries: []Query{
			{
				ID:     uuid.MustParse("9a463788-d1d1-4d34-a3c6-9547ae81bb22"),
				Hash:   dochash.Hash{Hash: "abc", Algorithm: dochash.AlgorithmSHA256, Format: dochash.FormatHex},
				Source: "{ __typename }",
			},
		},
		PublishedClients: []PublishedClient{
			{
				ID:              uuid.MustParse("4f0a9f5b-9f93-4b4c-b5a9-0b65bb7c20dc"),
				EnvironmentID:   envID,
				SchemaID:        schemaID,
				ClientID:        clientID,
				ClientVersionID: uuid.MustParse("dc3ad022-1cf3-4fe0-97ad-7c4357e6ba22"),
			},
		},
	}

	data, err := input.MarshalBinary()
	if !assert.NoError(err) {
		return
	}

	var actual Snapshot
	err = actual.UnmarshalBinary(data)
	if !assert.NoError(err) {
		return
	}

	assert.Equal(input, actual)
}

func Test_Snapshot_UnmarshalBinary_truncated(t *testing.T) {
	assert := assert.New(t)

	input := Snapshot{
		Environments: []Environment{{ID: uuid.New(), Name: "prod"}},
	}

	data, err := input.MarshalBinary()
	if !assert.NoError(err) {
		return
	}

	var actual Snapshot
	err = actual.UnmarshalBinary(data[:len(data)/2])
	assert.Error(err)
}
