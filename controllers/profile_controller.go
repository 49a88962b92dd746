package controller

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coldreach/config"
	"coldreach/models"
	"coldreach/utils"
)

type ProfileRequest struct {
	Name        string                 `json:"name" validate:"required,max=100"`
	Description string                 `json:"description" validate:"omitempty,max=500"`
	IsDefault   bool                   `json:"is_default"`
	Config      map[string]interface{} `json:"config" validate:"required"`
}

type ProfileController struct {
	Logger *logrus.Entry
}

func NewProfileController(logger *logrus.Entry) *ProfileController {
	return &ProfileController{Logger: logger}
}

// GetProfiles lists all warmup profiles
func (pc *ProfileController) GetProfiles(c *fiber.Ctx) error {
	var profiles []models.WarmupProfile
	if err := config.DB.Order("is_system desc, name asc").Find(&profiles).Error; err != nil {
		pc.Logger.WithError(err).Error("failed to list profiles")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.JSON(profiles)
}

// CreateProfile adds a custom warmup profile
func (pc *ProfileController) CreateProfile(c *fiber.Ctx) error {
	var req ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrInvalidRequestBody,
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	configJSON, err := json.Marshal(req.Config)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "config is not serializable",
		})
	}

	profile := models.WarmupProfile{
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
		ConfigJSON:  string(configJSON),
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if req.IsDefault {
			if err := tx.Model(&models.WarmupProfile{}).Where("is_default = ?", true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&profile).Error
	})
	if err != nil {
		pc.Logger.WithError(err).Error("failed to create profile")
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "profile already exists or could not be saved",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(profile)
}

// UpdateProfile changes a custom profile. System profiles are immutable.
func (pc *ProfileController) UpdateProfile(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid profile ID",
		})
	}

	var profile models.WarmupProfile
	if err := config.DB.First(&profile, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "profile not found",
			})
		}
		pc.Logger.WithError(err).Error("database error fetching profile")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	if profile.IsSystem {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "system profiles cannot be modified",
		})
	}

	var req ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrInvalidRequestBody,
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	configJSON, err := json.Marshal(req.Config)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "config is not serializable",
		})
	}

	profile.Name = req.Name
	profile.Description = req.Description
	profile.IsDefault = req.IsDefault
	profile.ConfigJSON = string(configJSON)

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if req.IsDefault {
			if err := tx.Model(&models.WarmupProfile{}).Where("is_default = ? AND id != ?", true, profile.ID).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Save(&profile).Error
	})
	if err != nil {
		pc.Logger.WithError(err).Error("failed to update profile")
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "profile could not be saved",
		})
	}
	return c.JSON(profile)
}

// ApplyProfile links a profile to a mailbox so its ramp overrides apply.
func (pc *ProfileController) ApplyProfile(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid profile ID",
		})
	}

	var req struct {
		MailboxID uint `json:"mailbox_id" validate:"required,min=1"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrInvalidRequestBody,
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var profile models.WarmupProfile
	if err := config.DB.First(&profile, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "profile not found",
			})
		}
		pc.Logger.WithError(err).Error("database error fetching profile")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	result := config.DB.Model(&models.Mailbox{}).Where("id = ?", req.MailboxID).
		Update("warmup_profile_id", profile.ID)
	if result.Error != nil {
		pc.Logger.WithError(result.Error).Error("failed to link profile")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "mailbox not found",
		})
	}
	return c.JSON(fiber.Map{
		"message":    "profile applied",
		"profile_id": profile.ID,
		"mailbox_id": req.MailboxID,
	})
}

// DeleteProfile removes a custom profile. System profiles are protected;
// mailboxes linked to the profile fall back to the global config.
func (pc *ProfileController) DeleteProfile(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid profile ID",
		})
	}

	var profile models.WarmupProfile
	if err := config.DB.First(&profile, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "profile not found",
			})
		}
		pc.Logger.WithError(err).Error("database error fetching profile")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	if profile.IsSystem {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "system profiles cannot be deleted",
		})
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Mailbox{}).Where("warmup_profile_id = ?", profile.ID).
			Update("warmup_profile_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&profile).Error
	})
	if err != nil {
		pc.Logger.WithError(err).Error("failed to delete profile")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
