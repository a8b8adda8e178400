package controllers

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EventBooth/internal/pkg/audit"
	"github.com/ManuelReschke/EventBooth/internal/pkg/billing"
	"github.com/ManuelReschke/EventBooth/internal/pkg/metrics/counter"
)

// OperatorController serves the audit log, replay and reporting API used by
// the admin tooling.
type OperatorController struct {
	audit    *audit.Log
	replayer *billing.Replayer
	outcomes *counter.Outcomes
}

func NewOperatorController(auditLog *audit.Log, replayer *billing.Replayer, outcomes *counter.Outcomes) *OperatorController {
	return &OperatorController{audit: auditLog, replayer: replayer, outcomes: outcomes}
}

func (o *OperatorController) HandleListWebhooks(c *fiber.Ctx) error {
	filter := audit.Filter{
		Status:  c.Query("status"),
		Topic:   c.Query("topic"),
		OrderID: c.Query("order_id"),
		Page:    c.QueryInt("page", 1),
		Limit:   c.QueryInt("limit", 50),
	}.Normalized()
	records, total, err := o.audit.List(c.UserContext(), filter)
	if err != nil {
		log.Errorf("[Operator] List webhooks failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}
	return c.JSON(fiber.Map{
		"records": records,
		"total":   total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

func (o *OperatorController) HandleGetWebhook(c *fiber.Ctx) error {
	record, err := o.audit.Get(c.UserContext(), c.Params("id"))
	if errors.Is(err, audit.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}
	if err != nil {
		log.Errorf("[Operator] Get webhook failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup_failed"})
	}
	return c.JSON(record)
}

func (o *OperatorController) HandleReplayWebhook(c *fiber.Ctx) error {
	mode, err := billing.ParseReplayMode(c.Query("mode"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_mode"})
	}

	out, err := o.replayer.Replay(c.UserContext(), c.Params("id"), mode)
	switch {
	case errors.Is(err, audit.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	case errors.Is(err, billing.ErrTopicNotReplayable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "topic_not_replayable"})
	case err != nil:
		log.Errorf("[Operator] Replay failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "replay_failed"})
	}

	if out.Result == nil {
		return c.JSON(out)
	}
	return c.JSON(fiber.Map{
		"mode":       out.Mode,
		"sourceId":   out.SourceID,
		"recordId":   out.RecordID,
		"httpStatus": out.Result.HTTPStatus,
		"status":     out.Result.AuditState,
		"result":     out.Result.Response,
	})
}

func (o *OperatorController) HandlePurgeWebhooks(c *fiber.Ctx) error {
	olderThan, err := parseAge(c.Query("older_than"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_older_than"})
	}

	res, err := o.audit.Purge(c.UserContext(), audit.PurgeRequest{
		OlderThan: olderThan,
		Statuses:  splitList(c.Query("status")),
		Topics:    splitList(c.Query("topic")),
	})
	if errors.Is(err, audit.ErrInvalidPurge) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_older_than"})
	}
	if err != nil {
		log.Errorf("[Operator] Purge failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "purge_failed"})
	}
	return c.JSON(res)
}

func (o *OperatorController) HandlePackageReport(c *fiber.Ctx) error {
	report, err := o.audit.SKUReport(c.UserContext())
	if err != nil {
		log.Errorf("[Operator] SKU report failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "report_failed"})
	}
	return c.JSON(report)
}

// HandleStats returns the webhook outcome counters. ?reset=true drains them.
func (o *OperatorController) HandleStats(c *fiber.Ctx) error {
	read := o.outcomes.Snapshot
	if c.QueryBool("reset") {
		read = o.outcomes.Drain
	}
	counts, err := read(c.UserContext())
	if err != nil {
		log.Errorf("[Operator] Reading outcome counters failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_failed"})
	}
	return c.JSON(fiber.Map{"outcomes": counts})
}

var errAgeOutOfRange = errors.New("older_than must be positive and below 292 years")

// parseAge accepts positive Go durations ("720h") and whole days ("30d").
func parseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("older_than is required")
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil {
			return 0, err
		}
		if n <= 0 || n > math.MaxInt64/int64(24*time.Hour) {
			return 0, errAgeOutOfRange
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errAgeOutOfRange
	}
	return d, nil
}
