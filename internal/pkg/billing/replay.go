package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EventBooth/app/models"
	"github.com/ManuelReschke/EventBooth/internal/pkg/audit"
)

// ReplayMode selects what Replay does.
type ReplayMode string

const (
	ReplayDryRun ReplayMode = "dry_run"
	ReplayApply  ReplayMode = "apply"
)

var (
	ErrTopicNotReplayable = errors.New("only order.paid deliveries can be replayed")
	ErrInvalidReplayMode  = errors.New("replay mode must be dry_run or apply")
)

// ParseReplayMode accepts "dry_run" (default) and "apply".
func ParseReplayMode(s string) (ReplayMode, error) {
	switch ReplayMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReplayDryRun:
		return ReplayDryRun, nil
	case ReplayApply:
		return ReplayApply, nil
	default:
		return "", ErrInvalidReplayMode
	}
}

// ReplayResult describes a replay. Result and RecordID are only set in apply mode.
type ReplayResult struct {
	Mode     ReplayMode `json:"mode"`
	SourceID string     `json:"sourceId"`
	Payload  string     `json:"payload,omitempty"`
	RecordID string     `json:"recordId,omitempty"`
	Result   *Result    `json:"-"`
}

// Replayer re-drives stored deliveries through the pipeline.
type Replayer struct {
	audit    *audit.Log
	pipeline *Pipeline
}

func NewReplayer(auditLog *audit.Log, pipeline *Pipeline) *Replayer {
	return &Replayer{audit: auditLog, pipeline: pipeline}
}

// Replay loads record id. A dry run returns the stored payload unchanged.
// Apply writes a new audit record pointing at the original, which is never
// modified, and runs the payload as an authenticated delivery.
func (r *Replayer) Replay(ctx context.Context, id string, mode ReplayMode) (*ReplayResult, error) {
	if mode != ReplayDryRun && mode != ReplayApply {
		return nil, ErrInvalidReplayMode
	}

	original, err := r.audit.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if original.Topic != TopicOrderPaid {
		return nil, fmt.Errorf("%w: record %s has topic %q", ErrTopicNotReplayable, id, original.Topic)
	}

	out := &ReplayResult{Mode: mode, SourceID: original.ID}
	if mode == ReplayDryRun {
		out.Payload = original.Payload
		return out, nil
	}

	rec, err := r.audit.Begin(ctx, audit.Entry{
		Source:      models.AuditSourceReplay,
		Topic:       original.Topic,
		DeliveryID:  original.DeliveryID,
		SignatureOK: true,
		Payload:     []byte(original.Payload),
		ReplayOf:    original.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("record replay: %w", err)
	}

	log.Infof("[Webhook] Replaying record %s as %s", original.ID, rec.ID)
	res := r.pipeline.Run(ctx, rec.ID, []byte(original.Payload))
	out.RecordID = rec.ID
	out.Result = &res
	return out, nil
}
