// Package rbac содержит бизнес-логику ролей и разрешений:
// создание и разрешение ссылок, назначение ролей пользователям
// и предикат проверки прав.
package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// Ошибки предметной области.
var (
	// ErrDuplicateName разрешение или роль с таким именем уже существует.
	ErrDuplicateName = errors.New("name already exists")
	// ErrUnknownPermission ссылка по имени на несуществующее разрешение.
	ErrUnknownPermission = errors.New("unknown permission")
	// ErrRoleNotFound роль с указанным именем не найдена.
	ErrRoleNotFound = errors.New("role not found")
	// ErrNotFound сущность не найдена по идентификатору.
	ErrNotFound = errors.New("not found")
)

// Repository описывает контракт хранилища для ролей и разрешений.
type Repository interface {
	CreatePermission(ctx context.Context, p *models.Permission) (bson.ObjectID, error)
	GetPermissionByID(ctx context.Context, id bson.ObjectID) (*models.Permission, error)
	GetPermissionByName(ctx context.Context, name string) (*models.Permission, error)
	ListPermissions(ctx context.Context) ([]*models.Permission, error)
	GetPermissionsByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.Permission, error)
	UpdatePermissionByID(ctx context.Context, id bson.ObjectID, fields bson.M) error
	DeletePermissionByID(ctx context.Context, id bson.ObjectID) error

	CreateRole(ctx context.Context, r *models.Role) (bson.ObjectID, error)
	GetRoleByID(ctx context.Context, id bson.ObjectID) (*models.Role, error)
	GetRoleByName(ctx context.Context, name string) (*models.Role, error)
	ListRoles(ctx context.Context) ([]*models.Role, error)
	GetRolesByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.Role, error)
	UpdateRoleByID(ctx context.Context, id bson.ObjectID, fields bson.M) error
	DeleteRoleByID(ctx context.Context, id bson.ObjectID) error

	AddRoleToUser(ctx context.Context, userID, roleID bson.ObjectID) error
}

// Service реализует операции над ролями и разрешениями.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// CreatePermission создает разрешение. На занятом имени возвращает ErrDuplicateName.
func (s *Service) CreatePermission(ctx context.Context, name, description string) (*models.Permission, error) {
	p := &models.Permission{Name: name, Description: description}
	id, err := s.repo.CreatePermission(ctx, p)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: permission %q", ErrDuplicateName, name)
		}
		return nil, err
	}
	p.ID = id
	return p, nil
}

// GetOrCreatePermission возвращает существующее разрешение или создает новое.
// Гонка одновременного создания разрешается повторным чтением по имени.
func (s *Service) GetOrCreatePermission(ctx context.Context, name, description string) (*models.Permission, error) {
	existing, err := s.repo.GetPermissionByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	created, err := s.CreatePermission(ctx, name, description)
	if err == nil {
		return created, nil
	}
	if errors.Is(err, ErrDuplicateName) {
		// конкурирующая вставка успела раньше
		return s.repo.GetPermissionByName(ctx, name)
	}
	return nil, err
}

// GetPermission возвращает разрешение по идентификатору.
func (s *Service) GetPermission(ctx context.Context, id bson.ObjectID) (*models.Permission, error) {
	p, err := s.repo.GetPermissionByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListPermissions возвращает все разрешения.
func (s *Service) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// UpdatePermission частично обновляет разрешение.
func (s *Service) UpdatePermission(ctx context.Context, id bson.ObjectID, name, description *string) (*models.Permission, error) {
	fields := bson.M{}
	if name != nil {
		fields["name"] = *name
	}
	if description != nil {
		fields["description"] = *description
	}
	if len(fields) > 0 {
		if err := s.repo.UpdatePermissionByID(ctx, id, fields); err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return nil, ErrNotFound
			case errors.Is(err, repository.ErrDuplicateKey):
				return nil, ErrDuplicateName
			default:
				return nil, err
			}
		}
	}
	return s.GetPermission(ctx, id)
}

// DeletePermission удаляет разрешение. Ссылки из ролей остаются и
// пропускаются при разрешении.
func (s *Service) DeletePermission(ctx context.Context, id bson.ObjectID) error {
	if err := s.repo.DeletePermissionByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// CreateRole создает роль, разрешая каждое имя разрешения в ссылку.
// Неизвестное имя дает ErrUnknownPermission, занятое имя роли — ErrDuplicateName.
func (s *Service) CreateRole(ctx context.Context, name, description string, permissionNames []string) (*models.Role, error) {
	permIDs := make([]bson.ObjectID, 0, len(permissionNames))
	for _, permName := range permissionNames {
		perm, err := s.repo.GetPermissionByName(ctx, permName)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownPermission, permName)
			}
			return nil, err
		}
		permIDs = append(permIDs, perm.ID)
	}

	r := &models.Role{Name: name, Description: description, Permissions: permIDs}
	id, err := s.repo.CreateRole(ctx, r)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: role %q", ErrDuplicateName, name)
		}
		return nil, err
	}
	r.ID = id
	return r, nil
}

// GetOrCreateRole возвращает существующую роль или создает новую с указанными
// разрешениями. Терпима к гонке одновременного создания.
func (s *Service) GetOrCreateRole(ctx context.Context, name, description string, permissionNames []string) (*models.Role, error) {
	existing, err := s.repo.GetRoleByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	created, err := s.CreateRole(ctx, name, description, permissionNames)
	if err == nil {
		return created, nil
	}
	if errors.Is(err, ErrDuplicateName) {
		return s.repo.GetRoleByName(ctx, name)
	}
	return nil, err
}

// GetRole возвращает роль с загруженными разрешениями (двухфазное чтение).
func (s *Service) GetRole(ctx context.Context, id bson.ObjectID) (*models.ResolvedRole, error) {
	role, err := s.repo.GetRoleByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.resolveRole(ctx, role)
}

// GetRoleByName возвращает роль по имени с загруженными разрешениями.
func (s *Service) GetRoleByName(ctx context.Context, name string) (*models.ResolvedRole, error) {
	role, err := s.repo.GetRoleByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return s.resolveRole(ctx, role)
}

// ListRoles возвращает все роли с загруженными разрешениями.
func (s *Service) ListRoles(ctx context.Context) ([]*models.ResolvedRole, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	resolved := make([]*models.ResolvedRole, 0, len(roles))
	for _, role := range roles {
		r, err := s.resolveRole(ctx, role)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, r)
	}
	return resolved, nil
}

func (s *Service) resolveRole(ctx context.Context, role *models.Role) (*models.ResolvedRole, error) {
	perms, err := s.repo.GetPermissionsByIDs(ctx, role.Permissions)
	if err != nil {
		return nil, err
	}
	return &models.ResolvedRole{Role: *role, ResolvedPermissions: perms}, nil
}

// UpdateRole частично обновляет роль; набор разрешений заменяется целиком,
// если передан список имен.
func (s *Service) UpdateRole(ctx context.Context, id bson.ObjectID, name, description *string, permissionNames []string) (*models.ResolvedRole, error) {
	fields := bson.M{}
	if name != nil {
		fields["name"] = *name
	}
	if description != nil {
		fields["description"] = *description
	}
	if permissionNames != nil {
		permIDs := make([]bson.ObjectID, 0, len(permissionNames))
		for _, permName := range permissionNames {
			perm, err := s.repo.GetPermissionByName(ctx, permName)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, fmt.Errorf("%w: %q", ErrUnknownPermission, permName)
				}
				return nil, err
			}
			permIDs = append(permIDs, perm.ID)
		}
		fields["permissions"] = permIDs
	}
	if len(fields) > 0 {
		if err := s.repo.UpdateRoleByID(ctx, id, fields); err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return nil, ErrNotFound
			case errors.Is(err, repository.ErrDuplicateKey):
				return nil, ErrDuplicateName
			default:
				return nil, err
			}
		}
	}
	return s.GetRole(ctx, id)
}

// DeleteRole удаляет роль. Ссылки из пользователей остаются и
// пропускаются при проверке прав.
func (s *Service) DeleteRole(ctx context.Context, id bson.ObjectID) error {
	if err := s.repo.DeleteRoleByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// AssignRoleToUser назначает пользователю роль по имени. Операция
// идемпотентна: повторное назначение той же роли не создает дубликат.
func (s *Service) AssignRoleToUser(ctx context.Context, userID bson.ObjectID, roleName string) error {
	role, err := s.repo.GetRoleByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return err
	}
	return s.repo.AddRoleToUser(ctx, userID, role.ID)
}

// CheckPermission возвращает true, если имя разрешения встречается в наборе
// хотя бы одной роли пользователя (ИЛИ по ролям). Недостижимые ссылки
// на роли и разрешения пропускаются.
func (s *Service) CheckPermission(ctx context.Context, user *models.User, permissionName string) (bool, error) {
	roles, err := s.repo.GetRolesByIDs(ctx, user.Roles)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		perms, err := s.repo.GetPermissionsByIDs(ctx, role.Permissions)
		if err != nil {
			return false, err
		}
		for _, perm := range perms {
			if perm.Name == permissionName {
				return true, nil
			}
		}
	}
	return false, nil
}

// CheckAll возвращает true, только если CheckPermission выполняется для
// каждого имени из списка (И по списку требований).
func (s *Service) CheckAll(ctx context.Context, user *models.User, permissionNames []string) (bool, error) {
	for _, name := range permissionNames {
		ok, err := s.CheckPermission(ctx, user, name)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
