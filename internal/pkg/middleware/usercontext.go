package middleware

import (
	"strings"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/app/repository"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/security"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// Authenticator resolves bearer tokens to the current state of the user row.
type Authenticator struct {
	tokens *security.TokenIssuer
	users  repository.UserRepository
}

func NewAuthenticator(tokens *security.TokenIssuer, users repository.UserRepository) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

func bearerToken(c *fiber.Ctx) string {
	h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// resolve parses the access token and reloads the user row.
func (a *Authenticator) resolve(token string) (*models.User, error) {
	claims, err := a.tokens.Parse(token, security.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	user, err := a.users.GetByID(claims.UserID)
	if err != nil {
		return nil, security.ErrInvalidToken
	}
	return user, nil
}

func contextFor(user *models.User) usercontext.UserContext {
	username := ""
	if user.Username != nil {
		username = *user.Username
	}
	return usercontext.UserContext{
		UserID:     user.ID,
		Username:   username,
		Email:      user.Email,
		Role:       user.Role,
		IsLoggedIn: true,
		IsAdmin:    user.IsAdmin(),
	}
}
