package audit

import (
	"slices"
	"strings"

	common_models "coprox/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

var auditModules = []string{"cron_configs", "scripts"}

type AuditController struct {
	Service AuditService
}

func NewAuditController(service AuditService) *AuditController {
	return &AuditController{Service: service}
}

type auditPage struct {
	Page  int64                    `json:"page"`
	Limit int64                    `json:"limit"`
	Items []common_models.AuditLog `json:"items"`
}

// ListLogs godoc
// @Summary List audit logs
// @Tags audit
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param module query string false "cron_configs or scripts"
// @Param record_id query string false "Config or script name"
// @Param action query string false "CREATE, UPDATE, DELETE, ENABLE, DISABLE, CRON or SEED"
// @Success 200 {object} auditPage
// @Failure 400 {object} map[string]string
// @Router /api/audit-logs [get]
func (ctrl *AuditController) ListLogs(c *fiber.Ctx) error {
	page := int64(c.QueryInt("page", 1))
	limit := int64(c.QueryInt("limit", 20))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filters := map[string]interface{}{}
	if module := c.Query("module"); module != "" {
		if !slices.Contains(auditModules, module) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unknown module " + module,
			})
		}
		filters["module"] = module
	}
	if recordID := c.Query("record_id"); recordID != "" {
		filters["record_id"] = recordID
	}
	if action := c.Query("action"); action != "" {
		filters["action"] = common_models.AuditAction(strings.ToUpper(action))
	}

	logs, err := ctrl.Service.ListLogs(c.UserContext(), filters, page, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if logs == nil {
		logs = []common_models.AuditLog{}
	}

	return c.JSON(auditPage{Page: page, Limit: limit, Items: logs})
}
