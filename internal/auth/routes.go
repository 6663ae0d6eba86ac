package auth

import (
	"github.com/go-chi/chi/v5"
	"github.com/natours/natours-backend/internal/middleware"
	"github.com/natours/natours-backend/internal/users"
)

const BasePath = "/api/v1/users"

func SetupRoutes(h *Handler, gate *Gate) chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", h.SignupHandler)
	r.Post("/login", h.LoginHandler)
	r.Get("/logout", h.LogoutHandler)
	r.Post("/forgotPassword", h.ForgotPasswordHandler)
	r.Patch("/resetPassword/{token}", h.ResetPasswordHandler)
	r.With(middleware.Identify(gate)).Get("/session", h.SessionHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Protect(gate, h.log))

		r.Patch("/updateMyPassword", h.UpdatePasswordHandler)
		r.Get("/me", h.MeHandler)
		r.Patch("/updateMe", h.UpdateMeHandler)
		r.Delete("/deleteMe", h.DeleteMeHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RestrictTo(users.Roles(users.RoleAdmin), h.log))

			r.Get("/", h.ListUsersHandler)
			r.Get("/{id}", h.GetUserHandler)
			r.Patch("/{id}/role", h.UpdateRoleHandler)
		})
	})

	return r
}
