package rbac

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) CreatePermission(ctx context.Context, p *models.Permission) (bson.ObjectID, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(bson.ObjectID), args.Error(1)
}

func (m *mockRepository) GetPermissionByID(ctx context.Context, id bson.ObjectID) (*models.Permission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Permission), args.Error(1)
}

func (m *mockRepository) GetPermissionByName(ctx context.Context, name string) (*models.Permission, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Permission), args.Error(1)
}

func (m *mockRepository) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Permission), args.Error(1)
}

func (m *mockRepository) GetPermissionsByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.Permission, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Permission), args.Error(1)
}

func (m *mockRepository) UpdatePermissionByID(ctx context.Context, id bson.ObjectID, fields bson.M) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *mockRepository) DeletePermissionByID(ctx context.Context, id bson.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepository) CreateRole(ctx context.Context, r *models.Role) (bson.ObjectID, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(bson.ObjectID), args.Error(1)
}

func (m *mockRepository) GetRoleByID(ctx context.Context, id bson.ObjectID) (*models.Role, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Role), args.Error(1)
}

func (m *mockRepository) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Role), args.Error(1)
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]*models.Role, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Role), args.Error(1)
}

func (m *mockRepository) GetRolesByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.Role, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Role), args.Error(1)
}

func (m *mockRepository) UpdateRoleByID(ctx context.Context, id bson.ObjectID, fields bson.M) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *mockRepository) DeleteRoleByID(ctx context.Context, id bson.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepository) AddRoleToUser(ctx context.Context, userID, roleID bson.ObjectID) error {
	args := m.Called(ctx, userID, roleID)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckPermission(t *testing.T) {
	readID := bson.NewObjectID()
	editID := bson.NewObjectID()
	readerRoleID := bson.NewObjectID()
	editorRoleID := bson.NewObjectID()

	readerRole := models.Role{ID: readerRoleID, Name: "Reader", Permissions: []bson.ObjectID{readID}}
	editorRole := models.Role{ID: editorRoleID, Name: "Editor", Permissions: []bson.ObjectID{editID}}

	tests := []struct {
		name       string
		roles      []models.Role
		permission string
		want       bool
	}{
		{
			name:       "granted by first role",
			roles:      []models.Role{readerRole, editorRole},
			permission: "read",
			want:       true,
		},
		{
			name:       "granted by second role only",
			roles:      []models.Role{readerRole, editorRole},
			permission: "edit",
			want:       true,
		},
		{
			name:       "not granted by any role",
			roles:      []models.Role{readerRole, editorRole},
			permission: "delete",
			want:       false,
		},
		{
			name:       "user without roles",
			roles:      []models.Role{},
			permission: "read",
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockRepository)
			user := &models.User{ID: bson.NewObjectID()}
			for _, r := range tt.roles {
				user.Roles = append(user.Roles, r.ID)
			}
			repo.On("GetRolesByIDs", mock.Anything, user.Roles).Return(tt.roles, nil)
			repo.On("GetPermissionsByIDs", mock.Anything, readerRole.Permissions).
				Return([]models.Permission{{ID: readID, Name: "read"}}, nil).Maybe()
			repo.On("GetPermissionsByIDs", mock.Anything, editorRole.Permissions).
				Return([]models.Permission{{ID: editID, Name: "edit"}}, nil).Maybe()

			svc := New(repo, discardLogger())
			got, err := svc.CheckPermission(context.Background(), user, tt.permission)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckAll(t *testing.T) {
	permRead := bson.NewObjectID()
	permEdit := bson.NewObjectID()
	roleID := bson.NewObjectID()
	role := models.Role{ID: roleID, Name: "Editor", Permissions: []bson.ObjectID{permRead, permEdit}}
	user := &models.User{ID: bson.NewObjectID(), Roles: []bson.ObjectID{roleID}}

	repo := new(mockRepository)
	repo.On("GetRolesByIDs", mock.Anything, user.Roles).Return([]models.Role{role}, nil)
	repo.On("GetPermissionsByIDs", mock.Anything, role.Permissions).
		Return([]models.Permission{{ID: permRead, Name: "read"}, {ID: permEdit, Name: "edit"}}, nil)

	svc := New(repo, discardLogger())

	ok, err := svc.CheckAll(context.Background(), user, []string{"read", "edit"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CheckAll(context.Background(), user, []string{"read", "delete"})
	require.NoError(t, err)
	assert.False(t, ok, "missing one requirement must fail the whole list")

	ok, err = svc.CheckAll(context.Background(), user, nil)
	require.NoError(t, err)
	assert.True(t, ok, "empty requirement list is vacuously satisfied")
}

func TestGetOrCreatePermission(t *testing.T) {
	t.Run("returns existing", func(t *testing.T) {
		repo := new(mockRepository)
		existing := &models.Permission{ID: bson.NewObjectID(), Name: "read"}
		repo.On("GetPermissionByName", mock.Anything, "read").Return(existing, nil)

		svc := New(repo, discardLogger())
		got, err := svc.GetOrCreatePermission(context.Background(), "read", "Can read")
		require.NoError(t, err)
		assert.Equal(t, existing, got)
		repo.AssertNotCalled(t, "CreatePermission", mock.Anything, mock.Anything)
	})

	t.Run("creates when missing", func(t *testing.T) {
		repo := new(mockRepository)
		newID := bson.NewObjectID()
		repo.On("GetPermissionByName", mock.Anything, "read").Return(nil, repository.ErrNotFound)
		repo.On("CreatePermission", mock.Anything, mock.Anything).Return(newID, nil)

		svc := New(repo, discardLogger())
		got, err := svc.GetOrCreatePermission(context.Background(), "read", "Can read")
		require.NoError(t, err)
		assert.Equal(t, newID, got.ID)
		assert.Equal(t, "read", got.Name)
	})

	t.Run("loses creation race and rereads", func(t *testing.T) {
		repo := new(mockRepository)
		winner := &models.Permission{ID: bson.NewObjectID(), Name: "read"}
		repo.On("GetPermissionByName", mock.Anything, "read").Return(nil, repository.ErrNotFound).Once()
		repo.On("CreatePermission", mock.Anything, mock.Anything).Return(bson.NilObjectID, repository.ErrDuplicateKey)
		repo.On("GetPermissionByName", mock.Anything, "read").Return(winner, nil).Once()

		svc := New(repo, discardLogger())
		got, err := svc.GetOrCreatePermission(context.Background(), "read", "Can read")
		require.NoError(t, err)
		assert.Equal(t, winner, got)
	})
}

func TestCreateRole(t *testing.T) {
	t.Run("unknown permission name", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetPermissionByName", mock.Anything, "fly").Return(nil, repository.ErrNotFound)

		svc := New(repo, discardLogger())
		_, err := svc.CreateRole(context.Background(), "Pilot", "", []string{"fly"})
		assert.ErrorIs(t, err, ErrUnknownPermission)
		repo.AssertNotCalled(t, "CreateRole", mock.Anything, mock.Anything)
	})

	t.Run("duplicate role name", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("CreateRole", mock.Anything, mock.Anything).Return(bson.NilObjectID, repository.ErrDuplicateKey)

		svc := New(repo, discardLogger())
		_, err := svc.CreateRole(context.Background(), "Administrator", "", nil)
		assert.ErrorIs(t, err, ErrDuplicateName)
	})
}

func TestAssignRoleToUser(t *testing.T) {
	userID := bson.NewObjectID()
	roleID := bson.NewObjectID()

	t.Run("assigns by name", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetRoleByName", mock.Anything, "User").Return(&models.Role{ID: roleID, Name: "User"}, nil)
		repo.On("AddRoleToUser", mock.Anything, userID, roleID).Return(nil)

		svc := New(repo, discardLogger())
		err := svc.AssignRoleToUser(context.Background(), userID, "User")
		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("unknown role", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetRoleByName", mock.Anything, "Ghost").Return(nil, repository.ErrNotFound)

		svc := New(repo, discardLogger())
		err := svc.AssignRoleToUser(context.Background(), userID, "Ghost")
		assert.ErrorIs(t, err, ErrRoleNotFound)
	})
}
