package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaar-commerce/console/internal/shared"
)

type recordingWriter struct {
	logs []shared.AuditLog
	err  error
}

func (w *recordingWriter) Record(ctx context.Context, log shared.AuditLog) error {
	if w.err != nil {
		return w.err
	}
	w.logs = append(w.logs, log)
	return nil
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (e *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (e *recordingEnqueuer) Close() error { return nil }

func TestNewSecurityEventTaskFillsDefaults(t *testing.T) {
	task, err := NewSecurityEventTask(SecurityEvent{Kind: KindTenantMismatch, ResourceSellerID: "sellerB"})
	require.NoError(t, err)
	assert.Equal(t, TaskSecurityEvent, task.Type())

	var event SecurityEvent
	require.NoError(t, json.Unmarshal(task.Payload(), &event))
	assert.NotEmpty(t, event.EventID)
	assert.False(t, event.OccurredAt.IsZero())

	_, err = NewSecurityEventTask(SecurityEvent{})
	assert.Error(t, err)
}

func TestSecurityEventJobRecordsAudit(t *testing.T) {
	writer := &recordingWriter{}
	job := NewSecurityEventJob(writer, nil, nil)
	task, err := NewSecurityEventTask(SecurityEvent{
		EventID:          "evt-1",
		Kind:             KindTenantMismatch,
		PrincipalEmail:   "a@shop.test",
		Role:             "seller",
		RecordID:         "sellerA",
		ResourceSellerID: "sellerB",
		Method:           http.MethodPost,
		Path:             "/api/authorize/write",
	})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, writer.logs, 1)
	log := writer.logs[0]
	assert.Equal(t, "evt-1", log.EventID)
	assert.Equal(t, "access.tenant_mismatch", log.Action)
	assert.Equal(t, "sellerB", log.EntityID)
	assert.Equal(t, "sellerA", log.Meta["record_id"])
}

func TestSecurityEventJobSkipsBadPayloads(t *testing.T) {
	job := NewSecurityEventJob(&recordingWriter{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskSecurityEvent, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewSecurityEventTask(SecurityEvent{Kind: KindTenantMismatch})
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestSecurityEventJobRetriesWriterErrors(t *testing.T) {
	job := NewSecurityEventJob(&recordingWriter{err: errors.New("db down")}, nil, nil)
	task, err := NewSecurityEventTask(SecurityEvent{Kind: KindTenantMismatch, ResourceSellerID: "sellerB"})
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestClientPublishSecurityEvent(t *testing.T) {
	enq := &recordingEnqueuer{}
	client := NewClientWith(enq)
	require.NoError(t, client.PublishSecurityEvent(context.Background(), SecurityEvent{Kind: KindTenantMismatch, ResourceSellerID: "sellerB"}))
	require.Len(t, enq.tasks, 1)

	enq.err = asynq.ErrTaskIDConflict
	assert.NoError(t, client.PublishSecurityEvent(context.Background(), SecurityEvent{EventID: "dup", Kind: KindTenantMismatch}))

	enq.err = errors.New("redis down")
	assert.Error(t, client.PublishSecurityEvent(context.Background(), SecurityEvent{Kind: KindTenantMismatch}))
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthEndpoint(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueSecurity, Pending: 3}}, nil).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"security","pending":3}`, rr.Body.String())
}
