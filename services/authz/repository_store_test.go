package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alchemy-tracker/backend/repositories"
)

func TestRepositoryStore_RejectsMalformedIDs(t *testing.T) {
	store := NewRepositoryStore(&repositories.Repositories{})
	ctx := context.Background()

	_, err := store.UserByID(ctx, "not-a-uuid")
	assert.Error(t, err)

	_, err = store.RoleByID(ctx, "42")
	assert.Error(t, err)

	granted, err := store.CheckPermission(ctx, "abc", "users.read")
	assert.Error(t, err)
	assert.False(t, granted)
}

func TestRepositoryStore_MalformedSubjectDenies(t *testing.T) {
	resolver := newResolver(NewRepositoryStore(&repositories.Repositories{}))
	identity := signedIdentity("legacy-non-uuid", "")

	assert.False(t, resolver.HasPermission(context.Background(), identity, "users.read"))
	_, ok := resolver.CurrentRole(context.Background(), identity)
	assert.False(t, ok)
}
