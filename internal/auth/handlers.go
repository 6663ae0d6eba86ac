package auth

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/natours/natours-backend/internal/apperr"
	"github.com/natours/natours-backend/internal/httputil"
	"github.com/natours/natours-backend/internal/users"
	"github.com/natours/natours-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

const logoutCookieTTL = 10 * time.Second

type Handler struct {
	svc       *Service
	cookieTTL time.Duration
	basePath  string
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewHandler(svc *Service, cookieTTL time.Duration, basePath string, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, cookieTTL: cookieTTL, basePath: basePath, log: log, now: time.Now}
}

type sessionResponse struct {
	Status string   `json:"status"`
	Token  string   `json:"token"`
	Data   userData `json:"data"`
}

type userData struct {
	User *users.User `json:"user"`
}

func (h *Handler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var in SignupInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	sess, err := h.svc.Signup(r.Context(), in, baseURL(r)+"/me")
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	h.sendSession(w, r, http.StatusCreated, sess)
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	sess, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	h.sendSession(w, r, http.StatusOK, sess)
}

// LogoutHandler overwrites the session cookie with a short-lived placeholder.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    loggedOutValue,
		Path:     "/",
		Expires:  h.now().Add(logoutCookieTTL),
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": httputil.StatusSuccess})
}

func (h *Handler) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	resetURL := baseURL(r) + h.basePath + "/resetPassword/"
	if err := h.svc.RequestReset(r.Context(), in.Email, resetURL); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  httputil.StatusSuccess,
		"message": "Token sent to email!",
	})
}

func (h *Handler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	sess, err := h.svc.PerformReset(r.Context(), chi.URLParam(r, "token"), in.Password, in.PasswordConfirm)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	h.sendSession(w, r, http.StatusOK, sess)
}

// SessionHandler reports who is logged in, or null. It sits behind the soft gate.
func (h *Handler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	u, _ := utils.UserFromContext(r.Context())
	_ = httputil.WriteSuccess(w, http.StatusOK, userData{User: u})
}

func (h *Handler) UpdatePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PasswordCurrent string `json:"passwordCurrent"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())
	sess, err := h.svc.ChangePassword(r.Context(), userID, in.PasswordCurrent, in.Password, in.PasswordConfirm)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	h.sendSession(w, r, http.StatusOK, sess)
}

func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	h.writeUser(w, r, userID)
}

func (h *Handler) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	var in UpdateMeInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())
	u, err := h.svc.UpdateMe(r.Context(), userID, in)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, http.StatusOK, userData{User: u})
}

func (h *Handler) DeleteMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.GetUserIDFromContext(r.Context())
	if err := h.svc.DeleteMe(r.Context(), userID); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	list, err := h.svc.ListUsers(r.Context(), page)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  httputil.StatusSuccess,
		"results": len(list),
		"data":    map[string]any{"users": list},
	})
}

func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	h.writeUser(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) UpdateRoleHandler(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Role users.Role `json:"role"`
	}
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}

	u, err := h.svc.UpdateUserRole(r.Context(), chi.URLParam(r, "id"), in.Role)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, http.StatusOK, userData{User: u})
}

func (h *Handler) writeUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := h.svc.GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, http.StatusOK, userData{User: u})
}

// sendSession sets the session cookie and writes the token with the user.
func (h *Handler) sendSession(w http.ResponseWriter, r *http.Request, status int, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  h.now().Add(h.cookieTTL),
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
	_ = httputil.WriteJSON(w, status, sessionResponse{
		Status: httputil.StatusSuccess,
		Token:  sess.Token,
		Data:   userData{User: sess.User},
	})
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if isSecure(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func pageFromQuery(r *http.Request) (users.Page, error) {
	q := r.URL.Query()
	pageNum, limit := 1, users.DefaultPageSize

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return users.Page{}, apperr.Validation("Invalid page: " + v)
		}
		pageNum = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return users.Page{}, apperr.Validation("Invalid limit: " + v)
		}
		limit = n
	}
	return users.Page{Limit: limit, Offset: (pageNum - 1) * limit}, nil
}
