package user

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/lib/password"
	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) CreateUser(ctx context.Context, user *models.User) (bson.ObjectID, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(bson.ObjectID), args.Error(1)
}

func (m *mockRepository) GetUserByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockRepository) ListUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *mockRepository) UpdateUserByID(ctx context.Context, id bson.ObjectID, fields bson.M) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *mockRepository) DeleteUserByID(ctx context.Context, id bson.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) GetOrCreatePermission(ctx context.Context, name, description string) (*models.Permission, error) {
	args := m.Called(ctx, name, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Permission), args.Error(1)
}

func (m *mockProvisioner) GetOrCreateRole(ctx context.Context, name, description string, permissionNames []string) (*models.Role, error) {
	args := m.Called(ctx, name, description, permissionNames)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Role), args.Error(1)
}

func (m *mockProvisioner) AssignRoleToUser(ctx context.Context, userID bson.ObjectID, roleName string) error {
	args := m.Called(ctx, userID, roleName)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func expectBaseline(prov *mockProvisioner) {
	for _, name := range []string{"create", "edit", "read", "delete", "manage_roles"} {
		prov.On("GetOrCreatePermission", mock.Anything, name, mock.Anything).
			Return(&models.Permission{ID: bson.NewObjectID(), Name: name}, nil)
	}
	prov.On("GetOrCreateRole", mock.Anything, RoleAdministrator, mock.Anything, []string{"create", "edit", "read", "delete", "manage_roles"}).
		Return(&models.Role{ID: bson.NewObjectID(), Name: RoleAdministrator}, nil)
	prov.On("GetOrCreateRole", mock.Anything, RoleUser, mock.Anything, []string{"create", "edit", "read", "delete"}).
		Return(&models.Role{ID: bson.NewObjectID(), Name: RoleUser}, nil)
}

func TestCreate(t *testing.T) {
	req := CreateRequest{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "secret123",
		IsStudent: true,
	}

	t.Run("registers and assigns default role", func(t *testing.T) {
		repo := new(mockRepository)
		prov := new(mockProvisioner)
		newID := bson.NewObjectID()

		repo.On("GetUserByUsername", mock.Anything, "alice").Return(nil, repository.ErrNotFound)
		repo.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(nil, repository.ErrNotFound)
		expectBaseline(prov)
		repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
			return u.Username == "alice" && u.Active && u.IsStudent &&
				password.Verify(u.HashedPassword, "secret123")
		})).Return(newID, nil)
		prov.On("AssignRoleToUser", mock.Anything, newID, RoleUser).Return(nil)
		repo.On("GetUserByID", mock.Anything, newID).
			Return(&models.User{ID: newID, Username: "alice"}, nil)

		svc := New(repo, prov, discardLogger())
		got, err := svc.Create(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, newID, got.ID)
		repo.AssertExpectations(t)
		prov.AssertExpectations(t)
	})

	t.Run("admin flag assigns Administrator role", func(t *testing.T) {
		repo := new(mockRepository)
		prov := new(mockProvisioner)
		newID := bson.NewObjectID()

		repo.On("GetUserByUsername", mock.Anything, "alice").Return(nil, repository.ErrNotFound)
		repo.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(nil, repository.ErrNotFound)
		expectBaseline(prov)
		repo.On("CreateUser", mock.Anything, mock.Anything).Return(newID, nil)
		prov.On("AssignRoleToUser", mock.Anything, newID, RoleAdministrator).Return(nil)
		repo.On("GetUserByID", mock.Anything, newID).
			Return(&models.User{ID: newID, Username: "alice"}, nil)

		adminReq := req
		adminReq.IsAdmin = true
		svc := New(repo, prov, discardLogger())
		_, err := svc.Create(context.Background(), adminReq)
		require.NoError(t, err)
		prov.AssertNotCalled(t, "AssignRoleToUser", mock.Anything, newID, RoleUser)
		prov.AssertExpectations(t)
	})

	t.Run("default role carries all action permissions", func(t *testing.T) {
		repo := new(mockRepository)
		prov := new(mockProvisioner)
		newID := bson.NewObjectID()

		repo.On("GetUserByUsername", mock.Anything, "alice").Return(nil, repository.ErrNotFound)
		repo.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(nil, repository.ErrNotFound)
		for _, name := range []string{"create", "edit", "read", "delete", "manage_roles"} {
			prov.On("GetOrCreatePermission", mock.Anything, name, mock.Anything).
				Return(&models.Permission{ID: bson.NewObjectID(), Name: name}, nil)
		}
		var userRolePerms []string
		prov.On("GetOrCreateRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				if args.String(1) == RoleUser {
					userRolePerms = args.Get(3).([]string)
				}
			}).
			Return(&models.Role{ID: bson.NewObjectID()}, nil)
		repo.On("CreateUser", mock.Anything, mock.Anything).Return(newID, nil)
		prov.On("AssignRoleToUser", mock.Anything, newID, RoleUser).Return(nil)
		repo.On("GetUserByID", mock.Anything, newID).
			Return(&models.User{ID: newID, Username: "alice"}, nil)

		svc := New(repo, prov, discardLogger())
		_, err := svc.Create(context.Background(), req)
		require.NoError(t, err)
		// новый пользователь сразу может работать с объектами,
		// но не управлять ролями
		assert.ElementsMatch(t, []string{"create", "edit", "read", "delete"}, userRolePerms)
	})

	t.Run("username taken", func(t *testing.T) {
		repo := new(mockRepository)
		prov := new(mockProvisioner)
		repo.On("GetUserByUsername", mock.Anything, "alice").
			Return(&models.User{Username: "alice"}, nil)

		svc := New(repo, prov, discardLogger())
		_, err := svc.Create(context.Background(), req)
		assert.ErrorIs(t, err, ErrUsernameTaken)
		repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("email taken", func(t *testing.T) {
		repo := new(mockRepository)
		prov := new(mockProvisioner)
		repo.On("GetUserByUsername", mock.Anything, "alice").Return(nil, repository.ErrNotFound)
		repo.On("GetUserByEmail", mock.Anything, "alice@example.com").
			Return(&models.User{Email: "alice@example.com"}, nil)

		svc := New(repo, prov, discardLogger())
		_, err := svc.Create(context.Background(), req)
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("lost registration race maps to duplicate error", func(t *testing.T) {
		repo := new(mockRepository)
		prov := new(mockProvisioner)
		repo.On("GetUserByUsername", mock.Anything, "alice").Return(nil, repository.ErrNotFound)
		repo.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(nil, repository.ErrNotFound)
		expectBaseline(prov)
		repo.On("CreateUser", mock.Anything, mock.Anything).
			Return(bson.NilObjectID, repository.ErrDuplicateKey)

		svc := New(repo, prov, discardLogger())
		_, err := svc.Create(context.Background(), req)
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})
}

func TestAuthenticate(t *testing.T) {
	hash, err := password.GetHash("secret123")
	require.NoError(t, err)
	stored := &models.User{
		ID:             bson.NewObjectID(),
		Username:       "alice",
		Email:          "alice@example.com",
		HashedPassword: hash,
		Active:         true,
	}

	tests := []struct {
		name     string
		email    string
		password string
		found    *models.User
		wantUser bool
	}{
		{
			name:     "valid credentials",
			email:    "alice@example.com",
			password: "secret123",
			found:    stored,
			wantUser: true,
		},
		{
			name:     "wrong password",
			email:    "alice@example.com",
			password: "wrong",
			found:    stored,
			wantUser: false,
		},
		{
			name:     "unknown email",
			email:    "bob@example.com",
			password: "secret123",
			found:    nil,
			wantUser: false,
		},
		{
			name:     "malformed stored hash",
			email:    "alice@example.com",
			password: "secret123",
			found:    &models.User{ID: stored.ID, Email: stored.Email, HashedPassword: "plaintext"},
			wantUser: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockRepository)
			if tt.found != nil {
				repo.On("GetUserByEmail", mock.Anything, tt.email).Return(tt.found, nil)
			} else {
				repo.On("GetUserByEmail", mock.Anything, tt.email).Return(nil, repository.ErrNotFound)
			}
			repo.On("UpdateUserByID", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

			svc := New(repo, new(mockProvisioner), discardLogger())
			got, err := svc.Authenticate(context.Background(), tt.email, tt.password)
			require.NoError(t, err, "authentication failure must not surface as an error")
			if tt.wantUser {
				require.NotNil(t, got)
				assert.Equal(t, stored.ID, got.ID)
				assert.NotNil(t, got.LastLogin)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestGetByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo := new(mockRepository)
		stored := &models.User{ID: bson.NewObjectID(), Email: "alice@example.com"}
		repo.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(stored, nil)

		svc := New(repo, new(mockProvisioner), discardLogger())
		got, err := svc.GetByEmail(context.Background(), "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, stored.ID, got.ID)
	})

	t.Run("unknown email", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, repository.ErrNotFound)

		svc := New(repo, new(mockProvisioner), discardLogger())
		_, err := svc.GetByEmail(context.Background(), "ghost@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdate(t *testing.T) {
	id := bson.NewObjectID()

	t.Run("partial update touches only provided fields", func(t *testing.T) {
		repo := new(mockRepository)
		bio := "new bio"
		repo.On("UpdateUserByID", mock.Anything, id, bson.M{"bio": bio}).Return(nil)
		repo.On("GetUserByID", mock.Anything, id).Return(&models.User{ID: id, Bio: bio}, nil)

		svc := New(repo, new(mockProvisioner), discardLogger())
		got, err := svc.Update(context.Background(), id, UpdateRequest{Bio: &bio})
		require.NoError(t, err)
		assert.Equal(t, bio, got.Bio)
		repo.AssertExpectations(t)
	})

	t.Run("new password is hashed", func(t *testing.T) {
		repo := new(mockRepository)
		pass := "newsecret"
		repo.On("UpdateUserByID", mock.Anything, id, mock.MatchedBy(func(fields bson.M) bool {
			hash, ok := fields["hashed_password"].(string)
			return ok && password.Verify(hash, pass)
		})).Return(nil)
		repo.On("GetUserByID", mock.Anything, id).Return(&models.User{ID: id}, nil)

		svc := New(repo, new(mockProvisioner), discardLogger())
		_, err := svc.Update(context.Background(), id, UpdateRequest{Password: &pass})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("empty update skips write", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetUserByID", mock.Anything, id).Return(&models.User{ID: id}, nil)

		svc := New(repo, new(mockProvisioner), discardLogger())
		_, err := svc.Update(context.Background(), id, UpdateRequest{})
		require.NoError(t, err)
		repo.AssertNotCalled(t, "UpdateUserByID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := new(mockRepository)
		active := false
		repo.On("UpdateUserByID", mock.Anything, id, mock.Anything).Return(repository.ErrNotFound)

		svc := New(repo, new(mockProvisioner), discardLogger())
		_, err := svc.Update(context.Background(), id, UpdateRequest{Active: &active})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
