package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/bazaar-commerce/console/internal/jobs"
	"github.com/bazaar-commerce/console/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueSecurity carries security events ahead of routine work.
	QueueSecurity = "security"
	// TaskSecurityEvent is the task type for security-relevant access events.
	TaskSecurityEvent = "access:security_event"
)

// Security event kinds.
const (
	KindTenantMismatch = "tenant_mismatch"
)

// SecurityEvent describes a refused access attempt worth auditing.
type SecurityEvent struct {
	EventID          string    `json:"event_id"`
	Kind             string    `json:"kind"`
	PrincipalEmail   string    `json:"principal_email"`
	Role             string    `json:"role"`
	RecordID         string    `json:"record_id"`
	ResourceSellerID string    `json:"resource_seller_id"`
	Method           string    `json:"method,omitempty"`
	Path             string    `json:"path,omitempty"`
	RequestID        string    `json:"request_id,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// NewSecurityEventTask constructs an Asynq task, filling EventID and OccurredAt when unset.
func NewSecurityEventTask(event SecurityEvent) (*asynq.Task, error) {
	if event.Kind == "" {
		return nil, errors.New("jobs: security event kind required")
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSecurityEvent, data, asynq.TaskID(event.EventID)), nil
}

// SecurityEventJob persists security events into the audit log.
type SecurityEventJob struct {
	writer  shared.AuditWriter
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSecurityEventJob constructs the job handler.
func NewSecurityEventJob(writer shared.AuditWriter, logger *slog.Logger, metrics *jobmetrics.Metrics) *SecurityEventJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecurityEventJob{writer: writer, logger: logger, metrics: metrics}
}

// Handle processes TaskSecurityEvent tasks.
func (j *SecurityEventJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskSecurityEvent)
	return tracker.End(j.handle(ctx, t))
}

func (j *SecurityEventJob) handle(ctx context.Context, t *asynq.Task) error {
	var event SecurityEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		j.logger.Error("security event payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	log := shared.AuditLog{
		EventID:  event.EventID,
		Actor:    event.PrincipalEmail,
		Action:   "access." + event.Kind,
		Entity:   "seller",
		EntityID: event.ResourceSellerID,
		Meta: map[string]any{
			"role":       event.Role,
			"record_id":  event.RecordID,
			"method":     event.Method,
			"path":       event.Path,
			"request_id": event.RequestID,
		},
		At: event.OccurredAt,
	}
	if err := log.Validate(); err != nil {
		j.logger.Error("security event rejected", slog.String("event_id", event.EventID), slog.Any("error", err))
		return asynq.SkipRetry
	}
	if err := j.writer.Record(ctx, log); err != nil {
		return err
	}
	j.logger.Info("security event recorded",
		slog.String("event_id", event.EventID),
		slog.String("kind", event.Kind),
		slog.String("principal", event.PrincipalEmail),
		slog.String("resource_seller_id", event.ResourceSellerID))
	return nil
}
