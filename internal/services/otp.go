package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/shopstreak/internal/models"
)

// OTP failure modes.
var (
	ErrOTPRateLimited     = errors.New("code requested too soon, wait before retrying")
	ErrOTPNotFound        = errors.New("code not found or already used")
	ErrOTPExpired         = errors.New("code expired")
	ErrOTPTooManyAttempts = errors.New("too many attempts, request a new code")
)

// InvalidCodeError reports a mismatched code and how many attempts remain
// before the record is invalidated.
type InvalidCodeError struct {
	AttemptsRemaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid code, %d attempts remaining", e.AttemptsRemaining)
}

// OTPService issues and verifies short-lived one-time codes. The clock is
// injected so expiry and cooldown checks are deterministic under test.
type OTPService struct {
	db          *gorm.DB
	log         *zap.Logger
	expiry      time.Duration
	resendAfter time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewOTPService constructs an OTPService.
func NewOTPService(db *gorm.DB, log *zap.Logger, expiry, resendAfter time.Duration, maxAttempts int) *OTPService {
	return &OTPService{
		db:          db,
		log:         log,
		expiry:      expiry,
		resendAfter: resendAfter,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *OTPService) WithClock(now func() time.Time) *OTPService {
	s.now = now
	return s
}

// Issue generates and persists a fresh 6-digit code for (email, purpose).
// At most one issuance per cooldown window; a new code invalidates any
// earlier active code for the same pair.
func (s *OTPService) Issue(email, purpose string) (string, error) {
	now := s.now()

	if err := s.purgeExpired(email, purpose, now); err != nil {
		return "", err
	}

	var recent models.EmailOTP
	err := s.db.Where("email = ? AND purpose = ? AND used = ?", email, purpose, false).
		Order("created_at desc").
		First(&recent).Error
	if err == nil && now.Sub(recent.CreatedAt) < s.resendAfter {
		return "", ErrOTPRateLimited
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	// A fresh code supersedes any still-active one for this pair.
	if err := s.db.Where("email = ? AND purpose = ? AND used = ?", email, purpose, false).
		Delete(&models.EmailOTP{}).Error; err != nil {
		return "", err
	}

	code, err := generateCode()
	if err != nil {
		return "", err
	}

	record := models.EmailOTP{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(s.expiry),
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := s.db.Create(&record).Error; err != nil {
		return "", err
	}

	s.log.Info("otp issued", zap.String("email", email), zap.String("purpose", purpose))
	return code, nil
}

// Verify checks a submitted code. A successful verification marks the record
// used; it cannot succeed twice. Three mismatches invalidate the record even
// inside the expiry window.
func (s *OTPService) Verify(email, code, purpose string) error {
	now := s.now()

	var record models.EmailOTP
	err := s.db.Where("email = ? AND purpose = ? AND used = ?", email, purpose, false).
		Order("created_at desc").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOTPNotFound
	} else if err != nil {
		return err
	}

	if record.ExpiresAt.Before(now) {
		if err := s.db.Delete(&record).Error; err != nil {
			return err
		}
		return ErrOTPExpired
	}

	if record.Attempts >= s.maxAttempts {
		if err := s.db.Delete(&record).Error; err != nil {
			return err
		}
		return ErrOTPTooManyAttempts
	}

	if record.Code != code {
		record.Attempts++
		if record.Attempts >= s.maxAttempts {
			if err := s.db.Delete(&record).Error; err != nil {
				return err
			}
			return &InvalidCodeError{AttemptsRemaining: 0}
		}
		if err := s.db.Model(&record).Update("attempts", record.Attempts).Error; err != nil {
			return err
		}
		return &InvalidCodeError{AttemptsRemaining: s.maxAttempts - record.Attempts}
	}

	if err := s.db.Model(&record).Update("used", true).Error; err != nil {
		return err
	}

	s.log.Info("otp verified", zap.String("email", email), zap.String("purpose", purpose))
	return nil
}

func (s *OTPService) purgeExpired(email, purpose string, now time.Time) error {
	return s.db.Where("email = ? AND purpose = ? AND expires_at < ?", email, purpose, now).
		Delete(&models.EmailOTP{}).Error
}

func generateCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
