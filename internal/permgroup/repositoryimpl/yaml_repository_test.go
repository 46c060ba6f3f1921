package repositoryimpl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/appperms/internal/permgroup"
	"github.com/kazz187/appperms/pkg/cerr"
	"github.com/kazz187/appperms/pkg/storage"
)

func TestYAMLRepository_LoadDefault(t *testing.T) {
	repo := NewYAMLRepository(storage.NewMemoryStorage())
	c, err := repo.Load(context.Background())
	require.NoError(t, err)

	_, ok := c.Permission("android.permission.CAMERA")
	assert.True(t, ok)
}

func TestYAMLRepository_SaveLoad(t *testing.T) {
	ctx := context.Background()
	repo := NewYAMLRepository(storage.NewMemoryStorage())

	c, err := permgroup.NewCatalog(
		[]permgroup.GroupInfo{{Name: "com.example.group.SYNC", Label: "Sync", Priority: 5}},
		[]permgroup.PermissionInfo{{Name: "com.example.permission.SYNC", Group: "com.example.group.SYNC", ProtectionLevel: permgroup.ProtectionDangerous}},
	)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, c))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	p, ok := loaded.Permission("com.example.permission.SYNC")
	require.True(t, ok)
	assert.Equal(t, "com.example.group.SYNC", p.Group)
	_, ok = loaded.Permission("android.permission.CAMERA")
	assert.False(t, ok)
}

func TestYAMLRepository_SaveRejectsInvalid(t *testing.T) {
	repo := NewYAMLRepository(storage.NewMemoryStorage())
	err := repo.Save(context.Background(), &permgroup.Catalog{
		Permissions: []permgroup.PermissionInfo{{Name: "p", Group: "missing", ProtectionLevel: permgroup.ProtectionDangerous}},
	})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestYAMLRepository_LoadInvalid(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStorage()
	require.NoError(t, s.Write(ctx, "catalog/permissions.yaml", []byte("permissions:\n  - name: p\n    protection_level: bogus\n")))

	_, err := NewYAMLRepository(s).Load(ctx)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}
