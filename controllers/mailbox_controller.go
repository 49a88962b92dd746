package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coldreach/config"
	"coldreach/models"
	"coldreach/utils"
)

const (
	ErrInvalidMailboxID = "invalid mailbox ID"
	ErrMailboxNotFound  = "mailbox not found"
)

type CreateMailboxRequest struct {
	Email           string `json:"email" validate:"required,email"`
	DisplayName     string `json:"display_name" validate:"omitempty,max=100"`
	ProviderType    string `json:"provider_type" validate:"omitempty,oneof=smtp gmail microsoft_365 other"`
	SMTPHost        string `json:"smtp_host" validate:"required"`
	SMTPPort        int    `json:"smtp_port" validate:"omitempty,min=1,max=65535"`
	SMTPPassword    string `json:"smtp_password" validate:"required"`
	IMAPHost        string `json:"imap_host"`
	IMAPPort        int    `json:"imap_port" validate:"omitempty,min=1,max=65535"`
	WarmupProfileID *uint  `json:"warmup_profile_id"`
	Notes           string `json:"notes"`
}

type UpdateMailboxRequest struct {
	DisplayName     *string `json:"display_name"`
	SMTPHost        *string `json:"smtp_host"`
	SMTPPort        *int    `json:"smtp_port"`
	SMTPPassword    *string `json:"smtp_password"`
	IMAPHost        *string `json:"imap_host"`
	IMAPPort        *int    `json:"imap_port"`
	IsActive        *bool   `json:"is_active"`
	WarmupProfileID *uint   `json:"warmup_profile_id"`
	Notes           *string `json:"notes"`
}

type MailboxController struct {
	Logger *logrus.Entry
}

func NewMailboxController(logger *logrus.Entry) *MailboxController {
	return &MailboxController{Logger: logger}
}

// CreateMailbox registers a mailbox for warmup management. Credentials are
// encrypted before they touch the database.
func (mc *MailboxController) CreateMailbox(c *fiber.Ctx) error {
	var req CreateMailboxRequest
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

	encrypted, err := utils.Encrypt(req.SMTPPassword)
	if err != nil {
		mc.Logger.WithError(err).Error("failed to encrypt credentials")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	mailbox := models.Mailbox{
		Email:           req.Email,
		DisplayName:     req.DisplayName,
		ProviderType:    req.ProviderType,
		SMTPHost:        req.SMTPHost,
		SMTPPort:        req.SMTPPort,
		SMTPPassword:    encrypted,
		IMAPHost:        req.IMAPHost,
		IMAPPort:        req.IMAPPort,
		WarmupProfileID: req.WarmupProfileID,
		WarmupStatus:    models.StatusInactive,
		Notes:           req.Notes,
	}
	if mailbox.ProviderType == "" {
		mailbox.ProviderType = "smtp"
	}
	if mailbox.SMTPPort == 0 {
		mailbox.SMTPPort = 587
	}
	if mailbox.IMAPPort == 0 {
		mailbox.IMAPPort = 993
	}

	if err := config.DB.Create(&mailbox).Error; err != nil {
		mc.Logger.WithError(err).Error("failed to create mailbox")
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "mailbox already exists or could not be saved",
		})
	}

	mailbox.Sanitize()
	return c.Status(fiber.StatusCreated).JSON(mailbox)
}

// GetMailboxes lists managed mailboxes with pagination
func (mc *MailboxController) GetMailboxes(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 25)
	if limit < 1 || limit > 100 {
		limit = 25
	}

	query := config.DB.Model(&models.Mailbox{})
	if status := c.Query("status"); status != "" {
		query = query.Where("warmup_status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		mc.Logger.WithError(err).Error("failed to count mailboxes")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	var mailboxes []models.Mailbox
	if err := query.Order("id asc").Offset((page - 1) * limit).Limit(limit).Find(&mailboxes).Error; err != nil {
		mc.Logger.WithError(err).Error("failed to list mailboxes")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	for i := range mailboxes {
		mailboxes[i].Sanitize()
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  mailboxes,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetMailbox returns one mailbox by ID
func (mc *MailboxController) GetMailbox(c *fiber.Ctx) error {
	mailbox := mc.findMailbox(c)
	if mailbox == nil {
		return nil
	}
	mailbox.Sanitize()
	return c.JSON(mailbox)
}

// UpdateMailbox applies a partial update
func (mc *MailboxController) UpdateMailbox(c *fiber.Ctx) error {
	mailbox := mc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	var req UpdateMailboxRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrInvalidRequestBody,
		})
	}

	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		updates["display_name"] = *req.DisplayName
	}
	if req.SMTPHost != nil {
		updates["smtp_host"] = *req.SMTPHost
	}
	if req.SMTPPort != nil {
		updates["smtp_port"] = *req.SMTPPort
	}
	if req.SMTPPassword != nil {
		encrypted, err := utils.Encrypt(*req.SMTPPassword)
		if err != nil {
			mc.Logger.WithError(err).Error("failed to encrypt credentials")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
		updates["smtp_password"] = encrypted
		updates["connection_status"] = models.ConnectionUntested
	}
	if req.IMAPHost != nil {
		updates["imap_host"] = *req.IMAPHost
	}
	if req.IMAPPort != nil {
		updates["imap_port"] = *req.IMAPPort
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.WarmupProfileID != nil {
		updates["warmup_profile_id"] = *req.WarmupProfileID
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	if len(updates) > 0 {
		if err := config.DB.Model(mailbox).Updates(updates).Error; err != nil {
			mc.Logger.WithError(err).Error("failed to update mailbox")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	mailbox.Sanitize()
	return c.JSON(mailbox)
}

// DeleteMailbox removes a mailbox from warmup management
func (mc *MailboxController) DeleteMailbox(c *fiber.Ctx) error {
	mailbox := mc.findMailbox(c)
	if mailbox == nil {
		return nil
	}

	if err := config.DB.Delete(mailbox).Error; err != nil {
		mc.Logger.WithError(err).Error("failed to delete mailbox")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// findMailbox loads the mailbox from the :id param. On failure it writes
// the error response and returns nil; the handler just returns nil.
func (mc *MailboxController) findMailbox(c *fiber.Ctx) *models.Mailbox {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": ErrInvalidMailboxID,
		})
		return nil
	}

	var mailbox models.Mailbox
	if err := config.DB.First(&mailbox, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": ErrMailboxNotFound,
			})
			return nil
		}
		mc.Logger.WithError(err).Error("database error fetching mailbox")
		_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
		return nil
	}
	return &mailbox
}
