package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"coldreach/config"
	"coldreach/models"
	"coldreach/utils"
)

type AlertController struct {
	Logger *logrus.Entry
}

func NewAlertController(logger *logrus.Entry) *AlertController {
	return &AlertController{Logger: logger}
}

// GetAlerts lists alerts, newest first. Filters: mailbox_id, unread=true,
// severity.
func (ac *AlertController) GetAlerts(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 25)
	if limit < 1 || limit > 100 {
		limit = 25
	}

	query := config.DB.Model(&models.WarmupAlert{})
	if id := c.QueryInt("mailbox_id"); id > 0 {
		query = query.Where("mailbox_id = ?", id)
	}
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}
	if severity := c.Query("severity"); severity != "" {
		query = query.Where("severity = ?", severity)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		ac.Logger.WithError(err).Error("failed to count alerts")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	var alerts []models.WarmupAlert
	if err := query.Order("created_at desc").Offset((page - 1) * limit).Limit(limit).Find(&alerts).Error; err != nil {
		ac.Logger.WithError(err).Error("failed to list alerts")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  alerts,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetUnreadCount returns how many alerts are unread, total and per severity.
func (ac *AlertController) GetUnreadCount(c *fiber.Ctx) error {
	type severityCount struct {
		Severity models.AlertSeverity `json:"severity"`
		Count    int64                `json:"count"`
	}

	var counts []severityCount
	err := config.DB.Model(&models.WarmupAlert{}).
		Select("severity, count(*) as count").
		Where("is_read = ?", false).
		Group("severity").
		Scan(&counts).Error
	if err != nil {
		ac.Logger.WithError(err).Error("failed to count unread alerts")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	var total int64
	bySeverity := fiber.Map{}
	for _, sc := range counts {
		total += sc.Count
		bySeverity[string(sc.Severity)] = sc.Count
	}
	return c.JSON(fiber.Map{
		"unread":      total,
		"by_severity": bySeverity,
	})
}

// MarkAlertRead marks one alert as read
func (ac *AlertController) MarkAlertRead(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid alert ID",
		})
	}

	result := config.DB.Model(&models.WarmupAlert{}).Where("id = ?", id).Update("is_read", true)
	if result.Error != nil {
		ac.Logger.WithError(result.Error).Error("failed to mark alert read")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "alert not found",
		})
	}
	return c.JSON(fiber.Map{"message": "alert marked read"})
}

// MarkAllRead marks every unread alert as read
func (ac *AlertController) MarkAllRead(c *fiber.Ctx) error {
	result := config.DB.Model(&models.WarmupAlert{}).Where("is_read = ?", false).Update("is_read", true)
	if result.Error != nil {
		ac.Logger.WithError(result.Error).Error("failed to mark alerts read")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	return c.JSON(fiber.Map{"marked": result.RowsAffected})
}
