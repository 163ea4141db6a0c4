package controller

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"gpodo/config"
	"gpodo/lifecycle"
	"gpodo/models"
	"gpodo/utils"
)

type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=100"`
	Country  string `json:"country" validate:"omitempty,max=80"`
	Role     string `json:"role" validate:"required,oneof=buyer supplier freelancer investor"`
	Language string `json:"language" validate:"omitempty,lang"`
}

type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type UpdateLanguageRequest struct {
	Language string `json:"language" validate:"required,lang"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	SessionID    string       `json:"session_id"`
	User         *models.User `json:"user"`
}

type AuthController struct {
	DB     *gorm.DB
	Mailer utils.Mailer
	Logger *logrus.Entry
}

func NewAuthController(db *gorm.DB, mailer utils.Mailer) *AuthController {
	return &AuthController{
		DB:     db,
		Mailer: mailer,
		Logger: logrus.WithField("component", "auth"),
	}
}

// SignUp creates a passwordless profile, credits the welcome bonus and
// mails the first code.
func (ac *AuthController) SignUp(c *fiber.Ctx) error {
	var req SignUpRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := utils.ValidateEmailFormat(req.Email); err != nil {
		return badRequest(c, "Invalid email address")
	}
	if utils.IsDisposableEmail(req.Email) {
		return badRequest(c, "Disposable email addresses are not allowed")
	}
	req.Name = utils.SanitizeText(req.Name)
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	var existing int64
	if err := ac.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		return respondError(c, err)
	}
	if existing > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Email already registered",
		})
	}

	// Login is by emailed code only; the stored hash is of a secret that
	// is never returned.
	secret, err := utils.GenerateSecureToken()
	if err != nil {
		return respondError(c, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return respondError(c, err)
	}

	lang := lifecycle.DefaultLanguage
	if req.Language != "" {
		lang = lifecycle.NormalizeLanguage(req.Language)
	} else if h := c.Get(fiber.HeaderAcceptLanguage); h != "" {
		lang = lifecycle.NormalizeLanguage(h)
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Country:      utils.SanitizeText(req.Country),
		Role:         req.Role,
		Language:     string(lang),
		IsActive:     true,
	}
	err = ac.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		entry, err := utils.AdjustPoints(tx, user.ID, models.SignupBonusPoints, models.PointsReasonSignup, nil)
		if err != nil {
			return err
		}
		user.Points = entry.BalanceAfter
		return nil
	})
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Email already registered",
			})
		}
		return respondError(c, err)
	}

	otpSent := ac.issueOTP(&user) == nil
	ac.Logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user signed up")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Account created. Check your email for the login code.",
		"user":     user,
		"otp_sent": otpSent,
	})
}

// SendOTP mails a login code, at most once per cooldown window.
func (ac *AuthController) SendOTP(c *fiber.Ctx) error {
	var req SendOTPRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	// unknown and inactive addresses get the same answer as a real send
	user, err := ac.findByEmail(req.Email)
	if errors.Is(err, ErrUserNotFound) || (err == nil && !user.IsActive) {
		return otpSentResponse(c)
	}
	if err != nil {
		return respondError(c, err)
	}

	if ok, remaining := utils.CanResendOTP(user); !ok {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":       "OTP was recently sent",
			"retry_after": int(remaining.Seconds()) + 1,
		})
	}

	if err := ac.issueOTP(user); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send OTP",
		})
	}
	return otpSentResponse(c)
}

func otpSentResponse(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":    "If the address is registered, a code has been sent",
		"expires_in": int(utils.OTPExpiry.Seconds()),
	})
}

func (ac *AuthController) issueOTP(user *models.User) error {
	otp, err := utils.GenerateOTP()
	if err != nil {
		utils.LogError("otp_generate", err, map[string]interface{}{"user_id": user.ID})
		return err
	}
	if err := utils.SaveOTP(ac.DB, user, otp); err != nil {
		utils.LogError("otp_save", err, map[string]interface{}{"user_id": user.ID})
		return err
	}
	if err := ac.Mailer.SendOTPEmail(user.Email, user.Name, otp, lifecycle.NormalizeLanguage(user.Language)); err != nil {
		utils.LogError("otp_send", err, map[string]interface{}{"user_id": user.ID})
		return err
	}
	utils.OTPSent.Inc()
	return nil
}

// VerifyOTP exchanges a valid code for a token pair.
func (ac *AuthController) VerifyOTP(c *fiber.Ctx) error {
	var req VerifyOTPRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	user, err := ac.findByEmail(req.Email)
	if err != nil {
		return respondError(c, err)
	}

	valid, err := utils.VerifyOTP(ac.DB, user, req.OTP)
	switch {
	case errors.Is(err, utils.ErrOTPExpired):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "OTP expired, request a new one",
		})
	case errors.Is(err, utils.ErrOTPTooManyAttempts):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Too many attempts, request a new OTP",
		})
	case err != nil:
		return respondError(c, err)
	case !valid:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":              "Invalid OTP",
			"attempts_remaining": utils.MaxOTPAttempts - user.OTPAttempts,
		})
	}

	accessToken, refreshToken, sessionID, err := utils.GenerateJWTToken(user)
	if err != nil {
		return respondError(c, err)
	}
	ac.setAccessCookie(c, accessToken, time.Now().Add(utils.AccessTokenTTL))

	utils.LogEvent("user_login", map[string]interface{}{
		"user_id":    user.ID,
		"session_id": sessionID,
		"ip":         c.IP(),
	})
	return c.JSON(AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    sessionID,
		User:         user,
	})
}

func (ac *AuthController) RefreshToken(c *fiber.Ctx) error {
	var req RefreshTokenRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	accessToken, refreshToken, sessionID, err := utils.RefreshTokens(ac.DB, req.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid refresh token",
		})
	}
	ac.setAccessCookie(c, accessToken, time.Now().Add(utils.AccessTokenTTL))

	return c.JSON(fiber.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"session_id":    sessionID,
	})
}

// SignOut revokes every token of the user by bumping the token version.
func (ac *AuthController) SignOut(c *fiber.Ctx) error {
	user := currentUser(c)
	if err := ac.DB.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("token_version", gorm.Expr("token_version + 1")).Error; err != nil {
		return respondError(c, err)
	}
	ac.setAccessCookie(c, "", time.Unix(0, 0))

	ac.Logger.WithField("user_id", user.ID).Info("user signed out")
	return c.JSON(fiber.Map{"message": "Signed out"})
}

func (ac *AuthController) GetCurrentUser(c *fiber.Ctx) error {
	var user models.User
	if err := ac.DB.Preload("Memberships").First(&user, currentUserID(c)).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

// UpdateLanguage stores the caller's UI language.
func (ac *AuthController) UpdateLanguage(c *fiber.Ctx) error {
	var req UpdateLanguageRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	lang := lifecycle.NormalizeLanguage(req.Language)
	user := currentUser(c)
	if err := ac.DB.Model(user).Update("language", string(lang)).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":  "Language updated",
		"language": lang,
	})
}

func (ac *AuthController) findByEmail(email string) (*models.User, error) {
	var user models.User
	err := ac.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (ac *AuthController) setAccessCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   !config.AppConfig.IsDevelopment(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
