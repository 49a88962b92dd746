package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"coldreach/config"
	"coldreach/warmup"
)

// transparentGIF is a 1x1 transparent pixel served for open tracking.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

type TrackingController struct {
	Logger *logrus.Entry
}

func NewTrackingController(logger *logrus.Entry) *TrackingController {
	return &TrackingController{Logger: logger}
}

// TrackOpen serves the tracking pixel. Always returns the pixel, even for
// unknown tokens, so scanners learn nothing from the response.
func (tc *TrackingController) TrackOpen(c *fiber.Ctx) error {
	token := c.Params("token")
	if token != "" {
		if _, err := warmup.RecordOpen(config.DB, token, time.Now().UTC()); err != nil {
			tc.Logger.WithError(err).WithField("token", token).Warn("failed to record open")
		}
	}

	c.Set(fiber.HeaderContentType, "image/gif")
	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
	return c.Send(transparentGIF)
}

// TrackClick records a link click and redirects to the original URL
func (tc *TrackingController) TrackClick(c *fiber.Ctx) error {
	token := c.Params("token")
	target := c.Query("url")
	if target == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing url parameter",
		})
	}

	if token != "" {
		if _, err := warmup.RecordClick(config.DB, token, time.Now().UTC()); err != nil {
			tc.Logger.WithError(err).WithField("token", token).Warn("failed to record click")
		}
	}

	return c.Redirect(target, fiber.StatusFound)
}
