package educationplatform

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	authhandler "github.com/magabrotheeeer/education-platform/internal/http/handlers/auth"
	billinghandler "github.com/magabrotheeeer/education-platform/internal/http/handlers/billing"
	coursehandler "github.com/magabrotheeeer/education-platform/internal/http/handlers/course"
	filehandler "github.com/magabrotheeeer/education-platform/internal/http/handlers/file"
	lessonhandler "github.com/magabrotheeeer/education-platform/internal/http/handlers/lesson"
	permissionhandler "github.com/magabrotheeeer/education-platform/internal/http/handlers/permission"
	rolehandler "github.com/magabrotheeeer/education-platform/internal/http/handlers/role"
	userhandler "github.com/magabrotheeeer/education-platform/internal/http/handlers/user"
	"github.com/magabrotheeeer/education-platform/internal/http/middlewarectx"
	authservice "github.com/magabrotheeeer/education-platform/internal/services/auth"
	billingservice "github.com/magabrotheeeer/education-platform/internal/services/billing"
	courseservice "github.com/magabrotheeeer/education-platform/internal/services/course"
	fileservice "github.com/magabrotheeeer/education-platform/internal/services/file"
	lessonservice "github.com/magabrotheeeer/education-platform/internal/services/lesson"
	rbacservice "github.com/magabrotheeeer/education-platform/internal/services/rbac"
	userservice "github.com/magabrotheeeer/education-platform/internal/services/user"
)

// Services собирает сервисы, необходимые маршрутам приложения.
type Services struct {
	Auth    *authservice.Service
	User    *userservice.Service
	RBAC    *rbacservice.Service
	Course  *courseservice.Service
	Lesson  *lessonservice.Service
	File    *fileservice.Service
	Billing *billingservice.Service
	Queue   *billingservice.Queue
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s *Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	auth := authhandler.New(logger, s.Auth)
	users := userhandler.New(logger, s.User)
	permissions := permissionhandler.New(logger, s.RBAC)
	roles := rolehandler.New(logger, s.RBAC)
	courses := coursehandler.New(logger, s.Course)
	lessons := lessonhandler.New(logger, s.Lesson)
	files := filehandler.New(logger, s.File)
	billing := billinghandler.New(logger, s.Billing, s.Queue)

	canCreate := middlewarectx.RequirePermission(logger, s.RBAC, "create")
	canRead := middlewarectx.RequirePermission(logger, s.RBAC, "read")
	canEdit := middlewarectx.RequirePermission(logger, s.RBAC, "edit")
	canDelete := middlewarectx.RequirePermission(logger, s.RBAC, "delete")

	// Изменение ролей и разрешений требует manage_roles вместе с действием.
	canManageCreate := middlewarectx.RequirePermission(logger, s.RBAC, "manage_roles", "create")
	canManageEdit := middlewarectx.RequirePermission(logger, s.RBAC, "manage_roles", "edit")
	canManageDelete := middlewarectx.RequirePermission(logger, s.RBAC, "manage_roles", "delete")

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", users.Register)
		r.Post("/auth/jwt/login", auth.Login)
		r.Post("/auth/jwt/refresh", auth.Refresh)

		// Вебхук провайдера аутентифицируется подписью, не токеном
		r.Post("/stripe/webhook", billing.Webhook)
		r.Get("/stripe/webhook-config", billing.WebhookConfig)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Post("/auth/jwt/logout", auth.Logout)
			r.Post("/auth/jwt/test-token", users.Me)
			r.Get("/users/me", users.Me)

			r.With(canRead).Get("/users", users.List)
			r.With(canRead).Get("/users/{id}", users.Get)
			r.With(canEdit).Put("/users/{id}", users.Update)
			r.With(canDelete).Delete("/users/{id}", users.Delete)

			r.With(canManageCreate).Post("/permissions", permissions.Create)
			r.With(canRead).Get("/permissions", permissions.List)
			r.With(canRead).Get("/permissions/{id}", permissions.Get)
			r.With(canManageEdit).Put("/permissions/{id}", permissions.Update)
			r.With(canManageDelete).Delete("/permissions/{id}", permissions.Delete)

			r.With(canManageCreate).Post("/roles", roles.Create)
			r.With(canRead).Get("/roles", roles.List)
			r.With(canRead).Get("/roles/{id}", roles.Get)
			r.With(canManageEdit).Put("/roles/{id}", roles.Update)
			r.With(canManageDelete).Delete("/roles/{id}", roles.Delete)
			r.With(canManageEdit).Post("/roles/assign", roles.Assign)

			r.With(canCreate).Post("/courses", courses.Create)
			r.With(canRead).Get("/courses", courses.List)
			r.With(canRead).Get("/courses/{id}", courses.Get)
			r.With(canEdit).Put("/courses/{id}", courses.Update)
			r.With(canDelete).Delete("/courses/{id}", courses.Delete)
			r.With(canRead).Post("/courses/{id}/enroll", courses.Enroll)

			r.With(canCreate).Post("/lessons", lessons.Create)
			r.With(canRead).Get("/lessons", lessons.List)
			r.With(canRead).Get("/lessons/{id}", lessons.Get)
			r.With(canEdit).Put("/lessons/{id}", lessons.Update)
			r.With(canDelete).Delete("/lessons/{id}", lessons.Delete)

			r.With(canCreate).Post("/files", files.Create)
			r.With(canRead).Get("/files", files.List)
			r.With(canRead).Get("/files/{id}", files.Get)
			r.With(canEdit).Put("/files/{id}", files.Update)
			r.With(canDelete).Delete("/files/{id}", files.Delete)

			r.Post("/stripe/create-checkout-session", billing.CreateCheckoutSession)
			r.With(canCreate).Post("/stripe/customers", billing.CreateCustomer)
			r.With(canCreate).Post("/stripe/products", billing.CreateProduct)
			r.With(canRead).Get("/stripe/products", billing.ListProducts)
			r.With(canCreate).Post("/stripe/subscriptions", billing.CreateSubscription)
			r.With(canRead).Get("/stripe/subscriptions", billing.ListSubscriptions)
			r.With(canRead).Get("/stripe/subscriptions/search", billing.SearchSubscriptions)
			r.With(canEdit).Delete("/stripe/subscriptions/{id}", billing.CancelSubscription)
			r.With(canEdit).Post("/stripe/resume-subscription/{id}", billing.ResumeSubscription)
			r.With(canCreate).Post("/billing/payment-plans", billing.CreatePaymentPlan)
			r.With(canRead).Get("/billing/installments/next", billing.NextInstallment)
		})
	})

	r.Get("/health-check", healthCheck)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
