package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/account"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/usercontext"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/utils"
)

type AuthController struct {
	accounts *account.Service
}

func NewAuthController(accounts *account.Service) *AuthController {
	return &AuthController{accounts: accounts}
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func userJSON(u *models.User) fiber.Map {
	return fiber.Map{
		"id":         u.ID,
		"email":      u.Email,
		"firstName":  u.FirstName,
		"lastName":   u.LastName,
		"username":   u.Username,
		"role":       u.Role,
		"isVerified": u.IsVerified,
		"avatarUrl":  utils.AvatarURL(u.Email, 0),
		"createdAt":  u.CreatedAt,
	}
}

// HandleRegister creates an unverified account and mails the OTP.
func (ac *AuthController) HandleRegister(c *fiber.Ctx) error {
	var req account.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := ac.accounts.Register(c.UserContext(), req)
	if err != nil {
		return ac.handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":             "Registration successful. Please check your email for verification code.",
		"userId":              res.User.ID,
		"email":               res.User.Email,
		"requireVerification": true,
		"emailSent":           res.EmailSent,
	})
}

func (ac *AuthController) HandleVerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "Email and verification code are required")
	}

	session, err := ac.accounts.VerifyEmail(c.UserContext(), req.Email, req.Code)
	if err != nil {
		return ac.handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":      "Email verified successfully!",
		"accessToken":  session.AccessToken,
		"refreshToken": session.RefreshToken,
		"user":         userJSON(session.User),
	})
}

func (ac *AuthController) HandleResendOTP(c *fiber.Ctx) error {
	var req emailRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "Email is required")
	}

	if err := ac.accounts.ResendOTP(c.UserContext(), req.Email); err != nil {
		return ac.handleError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Verification code sent successfully. Please check your email."})
}

func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "Email and password are required")
	}

	session, err := ac.accounts.Login(c.UserContext(), req.Email, req.Password)
	if errors.Is(err, account.ErrVerificationRequired) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":               "verification_required",
			"message":             "Email not verified. Please check your email for verification code.",
			"requireVerification": true,
			"email":               models.NormalizeEmail(req.Email),
		})
	}
	if err != nil {
		return ac.handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"accessToken":  session.AccessToken,
		"refreshToken": session.RefreshToken,
		"user":         userJSON(session.User),
	})
}

func (ac *AuthController) HandleRefresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "Refresh token is required")
	}

	pair, err := ac.accounts.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return ac.handleError(c, err)
	}
	return c.JSON(pair)
}

func (ac *AuthController) HandleMe(c *fiber.Ctx) error {
	user, err := ac.accounts.Me(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return ac.handleError(c, err)
	}
	return c.JSON(fiber.Map{"user": userJSON(user)})
}

func (ac *AuthController) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, account.ErrMissingCredentials):
		return badRequest(c, "Email and password are required")
	case errors.Is(err, account.ErrInvalidInput):
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, account.ErrEmailTaken):
		return jsonError(c, fiber.StatusConflict, "email_taken", "User already exists with this email")
	case errors.Is(err, account.ErrUsernameTaken):
		return jsonError(c, fiber.StatusConflict, "username_taken", "Username already taken")
	case errors.Is(err, account.ErrUserNotFound):
		return notFound(c, "User not found")
	case errors.Is(err, account.ErrAlreadyVerified):
		return jsonError(c, fiber.StatusBadRequest, "already_verified", "Email already verified. Please login.")
	case errors.Is(err, account.ErrInvalidCode):
		return jsonError(c, fiber.StatusBadRequest, "invalid_code", "Invalid or expired verification code")
	case errors.Is(err, account.ErrInvalidCredentials):
		return jsonError(c, fiber.StatusBadRequest, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, account.ErrBanned):
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Account is banned")
	case errors.Is(err, account.ErrInvalidToken):
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Invalid or expired refresh token")
	case errors.Is(err, account.ErrMailDelivery):
		return internalError(c, "Failed to send verification email. Please try again.")
	default:
		log.Errorf("[Auth] %s %s failed: %v", c.Method(), c.Path(), err)
		return internalError(c, "Request failed. Please try again.")
	}
}
