package schedules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/haneul-labs/crm-delivery/internal/email/history"
	"github.com/haneul-labs/crm-delivery/internal/email/mailer"
	"github.com/haneul-labs/crm-delivery/internal/email/templates"
	"github.com/haneul-labs/crm-delivery/internal/users"
	"github.com/haneul-labs/crm-delivery/pkg/config"
	"github.com/haneul-labs/crm-delivery/pkg/db"
	"github.com/haneul-labs/crm-delivery/pkg/db/models"
	"github.com/haneul-labs/crm-delivery/pkg/enums"
	apperrors "github.com/haneul-labs/crm-delivery/pkg/errors"
	"github.com/haneul-labs/crm-delivery/pkg/outbox"
	"github.com/haneul-labs/crm-delivery/pkg/scheduler"
	"gorm.io/gorm"
)

type fakeSchedule struct {
	fireAt  time.Time
	payload []byte
}

type fakeGateway struct {
	mtx        sync.Mutex
	created    map[string]fakeSchedule
	deleted    []string
	failCreate error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{created: make(map[string]fakeSchedule)}
}

func (g *fakeGateway) CreateSchedule(ctx context.Context, name string, fireAt time.Time, payload []byte) error {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if g.failCreate != nil {
		return g.failCreate
	}
	if _, ok := g.created[name]; ok {
		return apperrors.New(apperrors.CodeConflict, "schedule already exists")
	}
	g.created[name] = fakeSchedule{fireAt: fireAt, payload: payload}
	return nil
}

func (g *fakeGateway) DeleteSchedule(ctx context.Context, name string) error {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	delete(g.created, name)
	g.deleted = append(g.deleted, name)
	return nil
}

func (g *fakeGateway) entry(name string) (fakeSchedule, bool) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	entry, ok := g.created[name]
	return entry, ok
}

type fakeMailer struct {
	mtx     sync.Mutex
	sent    []mailer.Message
	failFor map[string]error
}

func (m *fakeMailer) Send(ctx context.Context, msg mailer.Message) (string, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if err := m.failFor[msg.Recipient]; err != nil {
		return "", err
	}
	m.sent = append(m.sent, msg)
	return fmt.Sprintf("msg-%d", len(m.sent)), nil
}

func (m *fakeMailer) messages() []mailer.Message {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	out := make([]mailer.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

type eventRecorder struct {
	mtx  sync.Mutex
	envs []outbox.Envelope
}

func (r *eventRecorder) record(ctx context.Context, env outbox.Envelope) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func (r *eventRecorder) ofType(eventType enums.DomainEventType) []outbox.Envelope {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	var out []outbox.Envelope
	for _, env := range r.envs {
		if env.Type == eventType {
			out = append(out, env)
		}
	}
	return out
}

func (r *eventRecorder) await(t *testing.T, eventType enums.DomainEventType, want int) []outbox.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := r.ofType(eventType)
		if len(got) >= want {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d %s events, have %d", want, eventType, len(got))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type serviceFixture struct {
	svc     *Service
	conn    *gorm.DB
	repo    Repository
	hist    history.Repository
	gateway *fakeGateway
	mail    *fakeMailer
	events  *eventRecorder
	bus     *outbox.Bus
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	conn := newTestDB(t)

	bus := outbox.NewBus(config.OutboxConfig{Workers: 1, QueueSize: 32}, nil)
	recorder := &eventRecorder{}
	for _, eventType := range []enums.DomainEventType{
		enums.EventScheduleEnrolled,
		enums.EventScheduleCanceled,
		enums.EventScheduleCompleted,
	} {
		if err := bus.Subscribe(eventType, recorder.record); err != nil {
			t.Fatalf("subscribe %s: %v", eventType, err)
		}
	}
	if err := bus.Start(context.Background()); err != nil {
		t.Fatalf("start bus: %v", err)
	}
	t.Cleanup(func() { _ = bus.Drain(time.Second) })

	gateway := newFakeGateway()
	mail := &fakeMailer{failFor: make(map[string]error)}
	repo := NewRepository(conn)
	hist := history.NewRepository(conn)
	svc := NewService(ServiceParams{
		Publisher: outbox.NewPublisher(db.NewWithConn(conn), bus, nil),
		Repo:      repo,
		Templates: templates.NewRepository(conn),
		History:   hist,
		Users:     users.NewRepository(conn),
		Gateway:   gateway,
		Mail:      mail,
		Sender:    "noreply@crm.example",
	})
	return &serviceFixture{
		svc:     svc,
		conn:    conn,
		repo:    repo,
		hist:    hist,
		gateway: gateway,
		mail:    mail,
		events:  recorder,
		bus:     bus,
	}
}

func seedTemplate(t *testing.T, conn *gorm.DB, subject, body string, vars []string) int64 {
	t.Helper()
	template := &models.EmailTemplate{
		Subject:   subject,
		Body:      body,
		Variables: templates.EncodeVariables(vars),
		Version:   1,
	}
	if err := conn.Create(template).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return template.ID
}

func seedUser(t *testing.T, conn *gorm.DB, attributes string) int64 {
	t.Helper()
	user := &models.User{Attributes: attributes}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user.ID
}

func mustSchedule(t *testing.T, f *serviceFixture, templateID int64, userIDs []int64, fireAt time.Time) string {
	t.Helper()
	eventID, err := f.svc.Schedule(context.Background(), ScheduleParams{
		TemplateID:  templateID,
		UserIDs:     userIDs,
		ExpiredTime: fireAt,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return eventID
}

func loadPayload(t *testing.T, f *serviceFixture, eventID string) *scheduler.NotificationEmailTimeoutPayload {
	t.Helper()
	row, err := f.repo.FindByEventID(context.Background(), eventID)
	if err != nil {
		t.Fatalf("load event: %v", err)
	}
	if row == nil {
		t.Fatalf("event %s not found", eventID)
	}
	var payload scheduler.NotificationEmailTimeoutPayload
	if err := json.Unmarshal([]byte(row.EventPayload), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return &payload
}

func assertCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := apperrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != code {
		t.Fatalf("expected code %s, got %s (%v)", code, typed.Code(), err)
	}
}

func TestScheduleCreatesRowAndGatewayEntry(t *testing.T) {
	f := newServiceFixture(t)
	templateID := seedTemplate(t, f.conn, "Welcome", "Hi", nil)
	userID := seedUser(t, f.conn, `{"email":"a@crm.example"}`)
	fireAt := time.Now().Add(time.Hour)

	eventID := mustSchedule(t, f, templateID, []int64{userID}, fireAt)
	if eventID == "" {
		t.Fatal("expected a generated event id")
	}

	row, err := f.repo.FindByEventID(context.Background(), eventID)
	if err != nil || row == nil {
		t.Fatalf("expected persisted row, got %+v err %v", row, err)
	}
	if row.Completed || row.Canceled || row.IsNotConsumed {
		t.Fatalf("new event must be pending, got %+v", row)
	}
	if row.EventClass != enums.EventClassNotificationEmailTimeout {
		t.Fatalf("unexpected event class %s", row.EventClass)
	}

	entry, ok := f.gateway.entry(eventID)
	if !ok {
		t.Fatal("expected gateway schedule to exist")
	}
	if !entry.fireAt.Equal(fireAt) {
		t.Fatalf("gateway fire time %v, want %v", entry.fireAt, fireAt)
	}

	payload := loadPayload(t, f, eventID)
	if payload.Type != scheduler.TaskTypeNotificationEmailTimeout {
		t.Fatalf("unexpected payload type %q", payload.Type)
	}
	if payload.TemplateID != templateID || len(payload.UserIDs) != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}

	events := f.events.await(t, enums.EventScheduleEnrolled, 1)
	enrolled, ok := events[0].Payload.(ScheduleEnrolled)
	if !ok {
		t.Fatalf("unexpected payload %T", events[0].Payload)
	}
	if enrolled.EventID != eventID || enrolled.Recipients != 1 {
		t.Fatalf("unexpected enrolled event %+v", enrolled)
	}
}

func TestScheduleRollsBackWhenGatewayFails(t *testing.T) {
	f := newServiceFixture(t)
	templateID := seedTemplate(t, f.conn, "Welcome", "Hi", nil)
	userID := seedUser(t, f.conn, `{"email":"a@crm.example"}`)
	f.gateway.failCreate = apperrors.New(apperrors.CodeDependency, "scheduler unavailable")

	_, err := f.svc.Schedule(context.Background(), ScheduleParams{
		TemplateID:  templateID,
		UserIDs:     []int64{userID},
		ExpiredTime: time.Now().Add(time.Hour),
	})
	assertCode(t, err, apperrors.CodeDependency)

	var count int64
	if err := f.conn.Model(&models.ScheduledEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to leave no rows, got %d", count)
	}

	if err := f.bus.Drain(time.Second); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got := f.events.ofType(enums.EventScheduleEnrolled); len(got) != 0 {
		t.Fatalf("expected no enrolled events after rollback, got %d", len(got))
	}
}

func TestScheduleValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	future := time.Now().Add(time.Hour)

	_, err := f.svc.Schedule(ctx, ScheduleParams{TemplateID: 0, UserIDs: []int64{1}, ExpiredTime: future})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.Schedule(ctx, ScheduleParams{TemplateID: 1, UserIDs: nil, ExpiredTime: future})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.Schedule(ctx, ScheduleParams{TemplateID: 1, UserIDs: []int64{1}, ExpiredTime: time.Now().Add(-time.Minute)})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestFireDeliversAndCompletes(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	templateID := seedTemplate(t, f.conn, "{{title}}", "Dear {{name}}",
		[]string{"title:Hello", "name"})
	alice := seedUser(t, f.conn, `{"email":"alice@crm.example","name":"Alice"}`)
	bob := seedUser(t, f.conn, `{"email":"bob@crm.example","name":"Bob","title":"Hi Bob"}`)

	eventID := mustSchedule(t, f, templateID, []int64{alice, bob}, time.Now().Add(time.Hour))
	result, err := f.svc.Fire(ctx, loadPayload(t, f, eventID))
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if result.RaceNoOp || result.Sent != 2 || result.Skipped != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	messages := f.mail.messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Subject != "Hello" || messages[0].Body != "Dear Alice" {
		t.Fatalf("unexpected first message %+v", messages[0])
	}
	if messages[1].Subject != "Hi Bob" || messages[1].Body != "Dear Bob" {
		t.Fatalf("unexpected second message %+v", messages[1])
	}

	row, err := f.repo.FindByEventID(ctx, eventID)
	if err != nil || row == nil {
		t.Fatalf("load row: %v", err)
	}
	if !row.Completed || row.Canceled || row.IsNotConsumed {
		t.Fatalf("expected completed row, got %+v", row)
	}

	entries, err := f.hist.ListByEventID(ctx, eventID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.SendStatus != enums.SendStatusSent {
			t.Fatalf("unexpected status %s for user %d", entry.SendStatus, entry.UserID)
		}
	}

	events := f.events.await(t, enums.EventScheduleCompleted, 1)
	completed, ok := events[0].Payload.(ScheduleCompleted)
	if !ok || completed.EventID != eventID || completed.Sent != 2 {
		t.Fatalf("unexpected completed event %+v", events[0].Payload)
	}
}

func TestFireRedeliveryIsNoOp(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	templateID := seedTemplate(t, f.conn, "S", "B", nil)
	userID := seedUser(t, f.conn, `{"email":"a@crm.example"}`)

	eventID := mustSchedule(t, f, templateID, []int64{userID}, time.Now().Add(time.Hour))
	payload := loadPayload(t, f, eventID)

	if _, err := f.svc.Fire(ctx, payload); err != nil {
		t.Fatalf("first fire: %v", err)
	}
	result, err := f.svc.Fire(ctx, payload)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !result.RaceNoOp {
		t.Fatal("expected redelivery to be a no-op")
	}

	row, err := f.repo.FindByEventID(ctx, eventID)
	if err != nil || row == nil {
		t.Fatalf("load row: %v", err)
	}
	if !row.Completed || !row.IsNotConsumed {
		t.Fatalf("expected completed row with not-consumed flag, got %+v", row)
	}
	if got := len(f.mail.messages()); got != 1 {
		t.Fatalf("redelivery must not resend, got %d messages", got)
	}
}

func TestFireAfterCancelIsNoOp(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	templateID := seedTemplate(t, f.conn, "S", "B", nil)
	userID := seedUser(t, f.conn, `{"email":"a@crm.example"}`)

	eventID := mustSchedule(t, f, templateID, []int64{userID}, time.Now().Add(time.Hour))
	if _, err := f.svc.Cancel(ctx, eventID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	result, err := f.svc.Fire(ctx, loadPayload(t, f, eventID))
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if !result.RaceNoOp {
		t.Fatal("expected fire after cancel to be a no-op")
	}
	if got := len(f.mail.messages()); got != 0 {
		t.Fatalf("canceled schedule must not send, got %d messages", got)
	}
}

func TestCancelPendingSchedule(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	templateID := seedTemplate(t, f.conn, "S", "B", nil)
	userID := seedUser(t, f.conn, `{"email":"a@crm.example"}`)

	eventID := mustSchedule(t, f, templateID, []int64{userID}, time.Now().Add(time.Hour))
	result, err := f.svc.Cancel(ctx, eventID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.RaceNoOp {
		t.Fatal("expected a real cancellation")
	}

	row, err := f.repo.FindByEventID(ctx, eventID)
	if err != nil || row == nil {
		t.Fatalf("load row: %v", err)
	}
	if !row.Completed || !row.Canceled || !row.IsNotConsumed {
		t.Fatalf("expected all terminal flags, got %+v", row)
	}
	if _, ok := f.gateway.entry(eventID); ok {
		t.Fatal("expected gateway schedule to be deleted")
	}

	events := f.events.await(t, enums.EventScheduleCanceled, 1)
	canceled, ok := events[0].Payload.(ScheduleCanceled)
	if !ok || canceled.EventID != eventID {
		t.Fatalf("unexpected canceled event %+v", events[0].Payload)
	}
}

func TestCancelAfterFireIsNoOp(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	templateID := seedTemplate(t, f.conn, "S", "B", nil)
	userID := seedUser(t, f.conn, `{"email":"a@crm.example"}`)

	eventID := mustSchedule(t, f, templateID, []int64{userID}, time.Now().Add(time.Hour))
	if _, err := f.svc.Fire(ctx, loadPayload(t, f, eventID)); err != nil {
		t.Fatalf("fire: %v", err)
	}

	result, err := f.svc.Cancel(ctx, eventID)
	if err != nil {
		t.Fatalf("cancel after fire must not error: %v", err)
	}
	if !result.RaceNoOp {
		t.Fatal("expected cancel after fire to be a no-op")
	}

	row, err := f.repo.FindByEventID(ctx, eventID)
	if err != nil || row == nil {
		t.Fatalf("load row: %v", err)
	}
	if !row.Completed || row.Canceled {
		t.Fatalf("completion must win the race, got %+v", row)
	}
}

func TestCancelUnknownEvent(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.Cancel(context.Background(), "no-such-event")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestFireMailFailureRollsBackAndRetries(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	templateID := seedTemplate(t, f.conn, "S", "B", nil)
	alice := seedUser(t, f.conn, `{"email":"alice@crm.example"}`)
	bob := seedUser(t, f.conn, `{"email":"bob@crm.example"}`)
	f.mail.failFor["bob@crm.example"] = errors.New("smtp connection reset")

	eventID := mustSchedule(t, f, templateID, []int64{alice, bob}, time.Now().Add(time.Hour))
	payload := loadPayload(t, f, eventID)

	_, err := f.svc.Fire(ctx, payload)
	assertCode(t, err, apperrors.CodeDependency)
	if !apperrors.Retryable(err) {
		t.Fatal("mail failures must be retryable")
	}

	row, findErr := f.repo.FindByEventID(ctx, eventID)
	if findErr != nil || row == nil {
		t.Fatalf("load row: %v", findErr)
	}
	if row.Completed || row.Canceled || row.IsNotConsumed {
		t.Fatalf("failed fire must leave the row pending, got %+v", row)
	}
	entries, listErr := f.hist.ListByEventID(ctx, eventID)
	if listErr != nil {
		t.Fatalf("list history: %v", listErr)
	}
	if len(entries) != 0 {
		t.Fatalf("rollback must discard partial history, got %d rows", len(entries))
	}

	delete(f.mail.failFor, "bob@crm.example")
	result, err := f.svc.Fire(ctx, payload)
	if err != nil {
		t.Fatalf("retry fire: %v", err)
	}
	if result.Sent != 2 {
		t.Fatalf("expected retry to deliver both, got %+v", result)
	}
	entries, listErr = f.hist.ListByEventID(ctx, eventID)
	if listErr != nil || len(entries) != 2 {
		t.Fatalf("expected 2 history rows after retry, got %d err %v", len(entries), listErr)
	}
}

func TestFireUnknownTemplateIsNotRetryable(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	templateID := seedTemplate(t, f.conn, "S", "B", nil)
	userID := seedUser(t, f.conn, `{"email":"a@crm.example"}`)

	eventID := mustSchedule(t, f, templateID, []int64{userID}, time.Now().Add(time.Hour))
	payload := loadPayload(t, f, eventID)
	payload.TemplateID = 99999

	_, err := f.svc.Fire(ctx, payload)
	assertCode(t, err, apperrors.CodeFormat)
	if apperrors.Retryable(err) {
		t.Fatal("a missing template never heals; the error must not be retryable")
	}

	row, findErr := f.repo.FindByEventID(ctx, eventID)
	if findErr != nil || row == nil {
		t.Fatalf("load row: %v", findErr)
	}
	if row.Completed {
		t.Fatalf("failed fire must leave the row pending, got %+v", row)
	}
}

func TestFireRecipientWithoutEmail(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	templateID := seedTemplate(t, f.conn, "S", "B", nil)
	withEmail := seedUser(t, f.conn, `{"email":"a@crm.example"}`)
	withoutEmail := seedUser(t, f.conn, `{"name":"No Address"}`)

	eventID := mustSchedule(t, f, templateID, []int64{withEmail, withoutEmail}, time.Now().Add(time.Hour))
	result, err := f.svc.Fire(ctx, loadPayload(t, f, eventID))
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	if result.Sent != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	entries, err := f.hist.ListByEventID(ctx, eventID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected history for both recipients, got %d", len(entries))
	}
	statuses := map[int64]enums.SendStatus{}
	for _, entry := range entries {
		statuses[entry.UserID] = entry.SendStatus
	}
	if statuses[withEmail] != enums.SendStatusSent || statuses[withoutEmail] != enums.SendStatusFailed {
		t.Fatalf("unexpected statuses %+v", statuses)
	}

	row, err := f.repo.FindByEventID(ctx, eventID)
	if err != nil || row == nil || !row.Completed {
		t.Fatalf("schedule must still complete, got %+v err %v", row, err)
	}
}

func TestRescheduleMovesFireTime(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	templateID := seedTemplate(t, f.conn, "S", "B", nil)
	userID := seedUser(t, f.conn, `{"email":"a@crm.example"}`)

	eventID := mustSchedule(t, f, templateID, []int64{userID}, time.Now().Add(time.Hour))
	newTime := time.Now().Add(48 * time.Hour)

	if err := f.svc.Reschedule(ctx, eventID, newTime); err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	row, err := f.repo.FindByEventID(ctx, eventID)
	if err != nil || row == nil {
		t.Fatalf("load row: %v", err)
	}
	wantAt := newTime.UTC().Format(time.RFC3339)
	if row.ScheduledAt != wantAt {
		t.Fatalf("scheduled_at %q, want %q", row.ScheduledAt, wantAt)
	}
	payload := loadPayload(t, f, eventID)
	if payload.ExpiredTime != wantAt {
		t.Fatalf("payload expired time %q, want %q", payload.ExpiredTime, wantAt)
	}
	entry, ok := f.gateway.entry(eventID)
	if !ok || !entry.fireAt.Equal(newTime) {
		t.Fatalf("gateway schedule not moved, got %+v ok=%v", entry, ok)
	}
}

func TestRescheduleTerminalEventConflicts(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	templateID := seedTemplate(t, f.conn, "S", "B", nil)
	userID := seedUser(t, f.conn, `{"email":"a@crm.example"}`)

	eventID := mustSchedule(t, f, templateID, []int64{userID}, time.Now().Add(time.Hour))
	if _, err := f.svc.Cancel(ctx, eventID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	err := f.svc.Reschedule(ctx, eventID, time.Now().Add(2*time.Hour))
	assertCode(t, err, apperrors.CodeConflict)

	err = f.svc.Reschedule(ctx, "no-such-event", time.Now().Add(2*time.Hour))
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestBrowseScheduledTasksListsPendingOnly(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	templateID := seedTemplate(t, f.conn, "S", "B", nil)
	userID := seedUser(t, f.conn, `{"email":"a@crm.example"}`)

	keep := mustSchedule(t, f, templateID, []int64{userID}, time.Now().Add(time.Hour))
	drop := mustSchedule(t, f, templateID, []int64{userID}, time.Now().Add(2*time.Hour))
	if _, err := f.svc.Cancel(ctx, drop); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	views, err := f.svc.BrowseScheduledTasks(ctx)
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected one pending task, got %d", len(views))
	}
	if views[0].EventID != keep || views[0].TemplateID != templateID {
		t.Fatalf("unexpected view %+v", views[0])
	}
	if len(views[0].UserIDs) != 1 || views[0].UserIDs[0] != userID {
		t.Fatalf("unexpected recipients %+v", views[0].UserIDs)
	}
}
