package handlers

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	config "github.com/calebms/postbridge/configs"
	job "github.com/calebms/postbridge/internal/jobs"
)

type SchedulerHandler struct {
	cfg config.Config
	j   *job.PublishDueJob
}

func NewSchedulerHandler(cfg config.Config, j *job.PublishDueJob) *SchedulerHandler {
	return &SchedulerHandler{cfg: cfg, j: j}
}

// RunPublishDue triggers one scheduler batch and returns its report. When
// a scheduler secret is configured the call must carry it as a bearer
// credential.
func (h *SchedulerHandler) RunPublishDue(c *fiber.Ctx) error {
	if h.cfg.SchedulerSecret != "" {
		token := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.SchedulerSecret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid scheduler credential",
			})
		}
	}

	report := h.j.Run(c.Context())
	return c.Status(fiber.StatusOK).JSON(report)
}
