package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/roofdocs/nexus/internal/auth"
	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/internal/server"
	"github.com/roofdocs/nexus/pkg/logger"
	"github.com/roofdocs/nexus/pkg/validation"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FullName  string `json:"full_name"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type profileUpdateRequest struct {
	FullName    string `json:"full_name"`
	AvatarURL   string `json:"avatar_url"`
	Preferences string `json:"preferences"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type userProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

type tokenResponse struct {
	Tokens *auth.TokenPair `json:"tokens"`
	User   *userProfile    `json:"user"`
}

func profileOf(u *db.User) *userProfile {
	return &userProfile{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CompanyID: u.CompanyID.String,
		AvatarURL: u.AvatarURL.String,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Register handles POST /api/auth/register.
func Register(c echo.Context, a *server.App) error {
	req := new(registerRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !validation.ValidEmail(email) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email address")
	}
	if problems := validation.CheckPassword(req.Password, validation.DefaultPasswordPolicy()); len(problems) > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, strings.Join(problems, "; "))
	}
	fullName := validation.StripHTML(strings.TrimSpace(req.FullName))
	if fullName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "full name is required")
	}

	exists, err := queries.UserEmailExists(a.DB, email)
	if err != nil {
		return err
	}
	if exists {
		return echo.NewHTTPError(http.StatusConflict, "an account with this email already exists")
	}

	role := req.Role
	if role == "" {
		role = db.RoleRep
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return err
	}

	user, err := queries.CreateUser(a.DB, email, hash, fullName, role, req.CompanyID)
	if err != nil {
		return err
	}

	tokens, err := auth.GenerateTokenPair(a.Config, user.ID)
	if err != nil {
		return err
	}

	if err := queries.LogActivity(a.DB, user.ID, "user_registered", ""); err != nil {
		logger.Warn("Failed to log registration", "error", err)
	}
	logger.Info("User registered", "email", email, "role", role)

	return sendJSONResponse(c, http.StatusCreated, &tokenResponse{Tokens: tokens, User: profileOf(user)})
}

// Login handles POST /api/auth/login.
func Login(c echo.Context, a *server.App) error {
	req := new(loginRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := queries.GetUserByEmail(a.DB, email)
	if err != nil || !auth.VerifyPassword(user.HashedPassword, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if !user.IsActive {
		return echo.NewHTTPError(http.StatusForbidden, "account is deactivated")
	}

	tokens, err := auth.GenerateTokenPair(a.Config, user.ID)
	if err != nil {
		return err
	}

	if err := queries.TouchLastLogin(a.DB, user.ID); err != nil {
		logger.Warn("Failed to update last login", "user", user.ID, "error", err)
	}
	if err := queries.LogActivity(a.DB, user.ID, "user_login", ""); err != nil {
		logger.Warn("Failed to log login", "error", err)
	}

	return sendJSONResponse(c, http.StatusOK, &tokenResponse{Tokens: tokens, User: profileOf(user)})
}

// Refresh handles POST /api/auth/refresh.
func Refresh(c echo.Context, a *server.App) error {
	req := new(refreshRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	claims, err := auth.ParseToken(a.Config, req.RefreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	user, err := queries.GetUserByID(a.DB, claims.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}
	if !user.IsActive {
		return echo.NewHTTPError(http.StatusForbidden, "account is deactivated")
	}

	tokens, err := auth.GenerateTokenPair(a.Config, user.ID)
	if err != nil {
		return err
	}
	return sendJSONResponse(c, http.StatusOK, &tokenResponse{Tokens: tokens, User: profileOf(user)})
}

// Me handles GET /api/auth/me.
func Me(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}
	return sendJSONResponse(c, http.StatusOK, profileOf(user))
}

// UpdateProfile handles PUT /api/auth/me.
func UpdateProfile(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	req := new(profileUpdateRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	fullName := validation.StripHTML(strings.TrimSpace(req.FullName))
	if fullName == "" {
		fullName = user.FullName
	}
	avatarURL := req.AvatarURL
	if avatarURL != "" && !validation.ValidURL(avatarURL) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid avatar URL")
	}
	if avatarURL == "" {
		avatarURL = user.AvatarURL.String
	}
	preferences := req.Preferences
	if preferences == "" {
		preferences = user.Preferences
	}

	if err := queries.UpdateUserProfile(a.DB, user.ID, fullName, avatarURL, preferences); err != nil {
		return err
	}

	updated, err := queries.GetUserByID(a.DB, user.ID)
	if err != nil {
		return err
	}
	return sendJSONResponse(c, http.StatusOK, profileOf(updated))
}

// ChangePassword handles POST /api/auth/change-password.
func ChangePassword(c echo.Context, a *server.App) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	req := new(changePasswordRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if !auth.VerifyPassword(user.HashedPassword, req.CurrentPassword) {
		return echo.NewHTTPError(http.StatusUnauthorized, "current password is incorrect")
	}
	if problems := validation.CheckPassword(req.NewPassword, validation.DefaultPasswordPolicy()); len(problems) > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, strings.Join(problems, "; "))
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := queries.UpdateUserPassword(a.DB, user.ID, hash); err != nil {
		return err
	}

	logger.Info("Password changed", "user", user.ID)
	return sendJSONResponse(c, http.StatusOK, map[string]string{"status": "password updated"})
}
