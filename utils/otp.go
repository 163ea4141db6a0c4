package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"
	"time"

	"gorm.io/gorm"

	"gpodo/models"
)

const (
	OTPLength         = 6
	OTPExpiry         = 15 * time.Minute
	MaxOTPAttempts    = 5
	OTPResendCooldown = 1 * time.Minute
)

var (
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPTooManyAttempts = errors.New("too many otp attempts")
)

func GenerateOTP() (string, error) {
	const digits = "0123456789"
	otp := make([]byte, OTPLength)

	for i := range otp {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		otp[i] = digits[num.Int64()]
	}

	return string(otp), nil
}

func GenerateSecureToken() (string, error) {
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	return hex.EncodeToString(token), nil
}

// SaveOTP stores a fresh code and resets the attempt counter.
func SaveOTP(db *gorm.DB, user *models.User, otp string) error {
	user.OTP = otp
	user.OTPExpiresAt = time.Now().Add(OTPExpiry)
	user.OTPAttempts = 0

	return db.Model(user).Updates(map[string]interface{}{
		"otp":            user.OTP,
		"otp_expires_at": user.OTPExpiresAt,
		"otp_attempts":   0,
	}).Error
}

// VerifyOTP checks a submitted code. A wrong code burns an attempt; a
// correct one is consumed and marks the email verified. Both writes are
// conditional on the stored code and the attempt budget, so callers
// holding stale copies of the row cannot reset or outrun the counter.
func VerifyOTP(db *gorm.DB, user *models.User, otp string) (bool, error) {
	if user.OTP == "" || time.Now().After(user.OTPExpiresAt) {
		return false, ErrOTPExpired
	}
	if user.OTPAttempts >= MaxOTPAttempts {
		return false, ErrOTPTooManyAttempts
	}

	pending := db.Model(&models.User{}).
		Where("id = ? AND otp = ? AND otp_attempts < ?", user.ID, user.OTP, MaxOTPAttempts)

	if subtle.ConstantTimeCompare([]byte(user.OTP), []byte(otp)) != 1 {
		res := pending.UpdateColumn("otp_attempts", gorm.Expr("otp_attempts + 1"))
		if res.Error != nil {
			return false, res.Error
		}
		if res.RowsAffected == 0 {
			return false, otpRejection(db, user)
		}
		var current models.User
		if err := db.Select("id", "otp_attempts").First(&current, user.ID).Error; err != nil {
			return false, err
		}
		user.OTPAttempts = current.OTPAttempts
		return false, nil
	}

	now := time.Now()
	res := pending.Updates(map[string]interface{}{
		"otp":            "",
		"otp_attempts":   0,
		"email_verified": true,
		"last_login_at":  now,
	})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, otpRejection(db, user)
	}
	user.OTP = ""
	user.OTPAttempts = 0
	user.EmailVerified = true
	user.LastLoginAt = &now
	return true, nil
}

// otpRejection explains a conditional OTP write that matched no row:
// either the code was replaced or consumed, or the budget ran out.
func otpRejection(db *gorm.DB, user *models.User) error {
	var current models.User
	if err := db.Select("id", "otp", "otp_attempts").First(&current, user.ID).Error; err != nil {
		return err
	}
	user.OTPAttempts = current.OTPAttempts
	if current.OTP == "" || current.OTP != user.OTP {
		return ErrOTPExpired
	}
	return ErrOTPTooManyAttempts
}

// CanResendOTP enforces the resend cooldown measured from the moment
// the current code was issued.
func CanResendOTP(user *models.User) (bool, time.Duration) {
	if user.OTPExpiresAt.IsZero() {
		return true, 0
	}

	issuedAt := user.OTPExpiresAt.Add(-OTPExpiry)
	remaining := time.Until(issuedAt.Add(OTPResendCooldown))
	if remaining <= 0 {
		return true, 0
	}
	return false, remaining
}
