package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/shopstreak/internal/middleware"
	"github.com/example/shopstreak/internal/models"
	"github.com/example/shopstreak/internal/utils"
)

// ProfileHandler manages customer profile endpoints.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

type addressRequest struct {
	Label       string `json:"label"`
	AddressLine string `json:"address_line"`
	Apartment   string `json:"apartment"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	IsDefault   bool   `json:"is_default"`
	IsCurrent   bool   `json:"is_current"`
}

type completeProfileRequest struct {
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Mobile      string         `json:"mobile"`
	DateOfBirth string         `json:"date_of_birth"`
	Gender      string         `json:"gender"`
	Address     addressRequest `json:"address"`
}

// CompleteProfile finishes onboarding: creates the profile with its first
// address and flips the stage to completed.
func (h *ProfileHandler) CompleteProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req completeProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.FirstName == "" || req.Mobile == "" {
		return fiber.NewError(fiber.StatusBadRequest, "first_name and mobile are required")
	}
	if !utils.ValidateMobile(req.Mobile) {
		return fiber.NewError(fiber.StatusBadRequest, "mobile must be a valid 10-digit number")
	}
	if req.Address.AddressLine == "" || req.Address.City == "" {
		return fiber.NewError(fiber.StatusBadRequest, "address is required")
	}

	var existing models.CustomerProfile
	if err := h.db.Where("user_id = ?", userID).First(&existing).Error; err == nil {
		return fiber.NewError(fiber.StatusConflict, "profile already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var mobileTaken models.CustomerProfile
	if err := h.db.Where("mobile = ?", req.Mobile).First(&mobileTaken).Error; err == nil {
		return fiber.NewError(fiber.StatusConflict, "mobile number already in use")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	profile := models.CustomerProfile{
		UserID:    userID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Mobile:    req.Mobile,
		Gender:    req.Gender,
	}

	if req.DateOfBirth != "" {
		if dob, err := time.Parse("2006-01-02", req.DateOfBirth); err == nil {
			profile.DateOfBirth = &dob
		} else {
			return fiber.NewError(fiber.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
		}
	}

	// The first address is always both default and current.
	profile.Addresses = []models.Address{{
		Label:       req.Address.Label,
		AddressLine: req.Address.AddressLine,
		Apartment:   req.Address.Apartment,
		City:        req.Address.City,
		State:       req.Address.State,
		PostalCode:  req.Address.PostalCode,
		IsDefault:   true,
		IsCurrent:   true,
	}}

	if err := h.db.Create(&profile).Error; err != nil {
		return err
	}

	if err := h.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("onboarding_stage", models.StageCompleted).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": profile})
}

// GetProfile returns the authenticated user's profile with addresses.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var profile models.CustomerProfile
	if err := h.db.Preload("Addresses").Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "profile not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": profile})
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Gender    *string `json:"gender"`
}

// UpdateProfile updates mutable profile fields.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Gender != nil {
		updates["gender"] = *req.Gender
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	if err := h.db.Model(&models.CustomerProfile{}).
		Where("user_id = ?", userID).
		Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "profile updated"})
}

// ListAddresses returns the profile's addresses.
func (h *ProfileHandler) ListAddresses(c *fiber.Ctx) error {
	profile, err := h.loadProfile(c)
	if err != nil {
		return err
	}

	var addresses []models.Address
	if err := h.db.Where("profile_id = ?", profile.ID).Find(&addresses).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": addresses})
}

// CreateAddress appends an address. Flagging it default or current clears the
// flag on every other address so exactly one carries each flag.
func (h *ProfileHandler) CreateAddress(c *fiber.Ctx) error {
	profile, err := h.loadProfile(c)
	if err != nil {
		return err
	}

	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.AddressLine == "" || req.City == "" {
		return fiber.NewError(fiber.StatusBadRequest, "address_line and city are required")
	}

	address := models.Address{
		ProfileID:   profile.ID,
		Label:       req.Label,
		AddressLine: req.AddressLine,
		Apartment:   req.Apartment,
		City:        req.City,
		State:       req.State,
		PostalCode:  req.PostalCode,
		IsDefault:   req.IsDefault,
		IsCurrent:   req.IsCurrent,
	}

	if req.IsDefault {
		if err := h.clearFlag(profile.ID, "is_default"); err != nil {
			return err
		}
	}
	if req.IsCurrent {
		if err := h.clearFlag(profile.ID, "is_current"); err != nil {
			return err
		}
	}

	if err := h.db.Create(&address).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": address})
}

type updateAddressRequest struct {
	Label       *string `json:"label"`
	AddressLine *string `json:"address_line"`
	Apartment   *string `json:"apartment"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	PostalCode  *string `json:"postal_code"`
	IsDefault   *bool   `json:"is_default"`
	IsCurrent   *bool   `json:"is_current"`
}

// UpdateAddress patches an address, keeping the single-default and
// single-current invariants.
func (h *ProfileHandler) UpdateAddress(c *fiber.Ctx) error {
	profile, err := h.loadProfile(c)
	if err != nil {
		return err
	}

	addrID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var address models.Address
	if err := h.db.Where("id = ? AND profile_id = ?", addrID, profile.ID).First(&address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "address not found")
		}
		return err
	}

	var req updateAddressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Label != nil {
		updates["label"] = *req.Label
	}
	if req.AddressLine != nil {
		updates["address_line"] = *req.AddressLine
	}
	if req.Apartment != nil {
		updates["apartment"] = *req.Apartment
	}
	if req.City != nil {
		updates["city"] = *req.City
	}
	if req.State != nil {
		updates["state"] = *req.State
	}
	if req.PostalCode != nil {
		updates["postal_code"] = *req.PostalCode
	}
	if req.IsDefault != nil && *req.IsDefault {
		if err := h.clearFlag(profile.ID, "is_default"); err != nil {
			return err
		}
		updates["is_default"] = true
	}
	if req.IsCurrent != nil && *req.IsCurrent {
		if err := h.clearFlag(profile.ID, "is_current"); err != nil {
			return err
		}
		updates["is_current"] = true
	}

	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	if err := h.db.Model(&address).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "address updated"})
}

// DeleteAddress removes an address. The last remaining address cannot be
// deleted; deleting the current address promotes another one.
func (h *ProfileHandler) DeleteAddress(c *fiber.Ctx) error {
	profile, err := h.loadProfile(c)
	if err != nil {
		return err
	}

	addrID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var address models.Address
	if err := h.db.Where("id = ? AND profile_id = ?", addrID, profile.ID).First(&address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "address not found")
		}
		return err
	}

	var count int64
	if err := h.db.Model(&models.Address{}).Where("profile_id = ?", profile.ID).Count(&count).Error; err != nil {
		return err
	}
	if count <= 1 {
		return fiber.NewError(fiber.StatusConflict, "cannot delete the only address")
	}

	if err := h.db.Delete(&address).Error; err != nil {
		return err
	}

	// Promote a survivor if the deleted address carried a flag.
	if address.IsCurrent || address.IsDefault {
		var survivor models.Address
		if err := h.db.Where("profile_id = ?", profile.ID).
			Order("created_at asc").
			First(&survivor).Error; err == nil {
			updates := map[string]interface{}{}
			if address.IsCurrent {
				updates["is_current"] = true
			}
			if address.IsDefault {
				updates["is_default"] = true
			}
			if err := h.db.Model(&survivor).Updates(updates).Error; err != nil {
				return err
			}
		}
	}

	return c.JSON(fiber.Map{"success": true, "message": "address deleted"})
}

func (h *ProfileHandler) clearFlag(profileID uuid.UUID, column string) error {
	return h.db.Model(&models.Address{}).
		Where("profile_id = ?", profileID).
		Update(column, false).Error
}

func (h *ProfileHandler) loadProfile(c *fiber.Ctx) (*models.CustomerProfile, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var profile models.CustomerProfile
	if err := h.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "profile not found")
		}
		return nil, err
	}

	return &profile, nil
}
