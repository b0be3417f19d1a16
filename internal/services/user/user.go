// Package user содержит бизнес-логику управления пользователями:
// регистрацию с подготовкой базовых ролей, аутентификацию по email
// и CRUD-операции над профилем.
package user

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/magabrotheeeer/education-platform/internal/lib/password"
	"github.com/magabrotheeeer/education-platform/internal/lib/sl"
	"github.com/magabrotheeeer/education-platform/internal/models"
	"github.com/magabrotheeeer/education-platform/internal/services/rbac"
	"github.com/magabrotheeeer/education-platform/internal/storage/repository"
)

// Ошибки предметной области.
var (
	// ErrUsernameTaken имя пользователя занято.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrEmailTaken email занят.
	ErrEmailTaken = errors.New("email already exists")
	// ErrNotFound пользователь не найден.
	ErrNotFound = errors.New("user not found")
)

// Имена базовых ролей, создаваемых при первой регистрации.
const (
	RoleAdministrator = "Administrator"
	RoleUser          = "User"
)

// baselinePermissions создаются перед каждой регистрацией через
// get-or-create: существующие переиспользуются, отсутствующие доздаются.
var baselinePermissions = []struct {
	name        string
	description string
}{
	{"create", "Can create objects"},
	{"edit", "Can edit objects"},
	{"read", "Can read objects"},
	{"delete", "Can delete objects"},
	{"manage_roles", "Can manage roles and permissions"},
}

// Repository описывает контракт хранилища пользователей.
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) (bson.ObjectID, error)
	GetUserByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUserByID(ctx context.Context, id bson.ObjectID, fields bson.M) error
	DeleteUserByID(ctx context.Context, id bson.ObjectID) error
}

// Provisioner подготавливает базовые разрешения и роли.
type Provisioner interface {
	GetOrCreatePermission(ctx context.Context, name, description string) (*models.Permission, error)
	GetOrCreateRole(ctx context.Context, name, description string, permissionNames []string) (*models.Role, error)
	AssignRoleToUser(ctx context.Context, userID bson.ObjectID, roleName string) error
}

// Service реализует операции над пользователями.
type Service struct {
	repo Repository
	rbac Provisioner
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, rbacSvc Provisioner, log *slog.Logger) *Service {
	return &Service{repo: repo, rbac: rbacSvc, log: log}
}

// CreateRequest данные регистрации нового пользователя.
type CreateRequest struct {
	Username  string
	Email     string
	Password  string
	IsTeacher bool
	IsStudent bool
	IsAdmin   bool
}

// Create регистрирует нового пользователя: проверяет уникальность имени
// и email, хеширует пароль, подготавливает базовые разрешения и роли
// и назначает роль User либо Administrator.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.User, error) {
	const op = "services.user.Create"
	log := s.log.With(slog.String("op", op), slog.String("username", req.Username))

	if _, err := s.repo.GetUserByUsername(ctx, req.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.repo.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := password.GetHash(req.Password)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return nil, err
	}

	if err := s.provisionBaseline(ctx); err != nil {
		log.Error("failed to provision baseline roles", sl.Err(err))
		return nil, err
	}

	now := time.Now().UTC()
	u := &models.User{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hash,
		Active:         true,
		Roles:          []bson.ObjectID{},
		IsTeacher:      req.IsTeacher,
		IsStudent:      req.IsStudent,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	id, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// конкурирующая регистрация с тем же именем или email
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	u.ID = id

	role := RoleUser
	if req.IsAdmin {
		role = RoleAdministrator
	}
	if err := s.rbac.AssignRoleToUser(ctx, id, role); err != nil {
		log.Error("failed to assign default role", sl.Err(err), slog.String("role", role))
		return nil, err
	}

	log.Info("user registered", slog.String("id", id.Hex()))
	return s.repo.GetUserByID(ctx, id)
}

// provisionBaseline создает базовые разрешения и роли Administrator и User,
// если их еще нет. Операция идемпотентна и терпима к одновременным
// регистрациям. Administrator получает все базовые разрешения вместе с
// manage_roles, User — разрешения на действия без manage_roles.
func (s *Service) provisionBaseline(ctx context.Context) error {
	names := make([]string, 0, len(baselinePermissions))
	for _, p := range baselinePermissions {
		if _, err := s.rbac.GetOrCreatePermission(ctx, p.name, p.description); err != nil {
			return err
		}
		names = append(names, p.name)
	}
	userNames := make([]string, 0, len(names))
	for _, n := range names {
		if n != "manage_roles" {
			userNames = append(userNames, n)
		}
	}
	if _, err := s.rbac.GetOrCreateRole(ctx, RoleAdministrator, "Full access", names); err != nil {
		return err
	}
	if _, err := s.rbac.GetOrCreateRole(ctx, RoleUser, "Default access", userNames); err != nil {
		return err
	}
	return nil
}

// Authenticate проверяет пару email-пароль. При любом несовпадении
// (неизвестный email, неверный пароль, поврежденный хеш) возвращает
// nil без ошибки: вызывающему не сообщается, какая половина не совпала.
func (s *Service) Authenticate(ctx context.Context, email, pass string) (*models.User, error) {
	const op = "services.user.Authenticate"
	log := s.log.With(slog.String("op", op), slog.String("email", email))

	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Info("authentication failed: unknown email")
			return nil, nil
		}
		return nil, err
	}
	if !password.HasValidFormat(u.HashedPassword) {
		log.Warn("authentication failed: stored hash has invalid format")
		return nil, nil
	}
	if !password.Verify(u.HashedPassword, pass) {
		log.Info("authentication failed: wrong password")
		return nil, nil
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateUserByID(ctx, u.ID, bson.M{"last_login": now}); err != nil {
		// неуспех отметки входа не блокирует аутентификацию
		log.Warn("failed to record last login", sl.Err(err))
	} else {
		u.LastLogin = &now
	}
	return u, nil
}

// Get возвращает пользователя по идентификатору.
func (s *Service) Get(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetByUsername возвращает пользователя по имени.
func (s *Service) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetByEmail возвращает пользователя по адресу почты.
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// List возвращает всех пользователей.
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	return s.repo.ListUsers(ctx)
}

// UpdateRequest частичное обновление профиля: nil-поля не трогаются.
type UpdateRequest struct {
	Email          *string
	Password       *string
	Active         *bool
	ProfilePicture *string
	Bio            *string
	Location       *string
	Website        *string
	PhoneNumber    *string
	IsTeacher      *bool
	IsStudent      *bool
}

// Update частично обновляет профиль пользователя. Новый пароль
// хешируется перед сохранением.
func (s *Service) Update(ctx context.Context, id bson.ObjectID, req UpdateRequest) (*models.User, error) {
	fields := bson.M{}
	if req.Email != nil {
		fields["email"] = *req.Email
	}
	if req.Password != nil {
		hash, err := password.GetHash(*req.Password)
		if err != nil {
			return nil, err
		}
		fields["hashed_password"] = hash
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}
	if req.ProfilePicture != nil {
		fields["profile_picture"] = *req.ProfilePicture
	}
	if req.Bio != nil {
		fields["bio"] = *req.Bio
	}
	if req.Location != nil {
		fields["location"] = *req.Location
	}
	if req.Website != nil {
		fields["website"] = *req.Website
	}
	if req.PhoneNumber != nil {
		fields["phone_number"] = *req.PhoneNumber
	}
	if req.IsTeacher != nil {
		fields["is_teacher"] = *req.IsTeacher
	}
	if req.IsStudent != nil {
		fields["is_student"] = *req.IsStudent
	}

	if len(fields) > 0 {
		if err := s.repo.UpdateUserByID(ctx, id, fields); err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return nil, ErrNotFound
			case errors.Is(err, repository.ErrDuplicateKey):
				return nil, ErrEmailTaken
			default:
				return nil, err
			}
		}
	}
	return s.Get(ctx, id)
}

// Delete удаляет пользователя.
func (s *Service) Delete(ctx context.Context, id bson.ObjectID) error {
	if err := s.repo.DeleteUserByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// компиляционная проверка, что сервис ролей удовлетворяет Provisioner
var _ Provisioner = (*rbac.Service)(nil)
