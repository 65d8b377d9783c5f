package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notofine/backend/internal/channels"
	"github.com/notofine/backend/internal/models"
	"github.com/notofine/backend/internal/storage"
)

// in-memory fakes

type memUsers struct {
	byID map[int64]*models.User
}

func (m *memUsers) Create(_ context.Context, u *models.User) (int64, error) {
	id := int64(len(m.byID) + 1)
	u.ID = id
	m.byID[id] = u
	return id, nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memUsers) SetSubscriptionExpiry(_ context.Context, userID int64, until *time.Time) error {
	u, ok := m.byID[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.SubscriptionExpiresAt = until
	return nil
}

type memTickets struct {
	byID map[int64]*models.Ticket
}

func (m *memTickets) Create(_ context.Context, t *models.Ticket) (int64, error) {
	id := int64(len(m.byID) + 1)
	t.ID = id
	m.byID[id] = t
	return id, nil
}

func (m *memTickets) GetByID(_ context.Context, id int64) (*models.Ticket, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTickets) ListByUser(_ context.Context, userID int64) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range m.byID {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTickets) ListOpenByUser(_ context.Context, userID int64) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range m.byID {
		if t.UserID == userID && t.Status == models.TicketOpen {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTickets) Update(_ context.Context, id int64, upd storage.TicketUpdate) error {
	t, ok := m.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.AmountUSD != nil {
		t.AmountUSD = *upd.AmountUSD
	}
	return nil
}

func (m *memTickets) Delete(_ context.Context, id int64) (string, error) {
	t, ok := m.byID[id]
	if !ok {
		return "", storage.ErrNotFound
	}
	delete(m.byID, id)
	return t.ImageURL, nil
}

type memReminders struct {
	byID map[int64]*models.Reminder
}

func (m *memReminders) Create(_ context.Context, ticketID int64, frequencyDays int, chans []models.Channel) (int64, error) {
	for _, r := range m.byID {
		if r.TicketID == ticketID {
			return 0, storage.ErrReminderExists
		}
	}
	id := int64(len(m.byID) + 1)
	r := &models.Reminder{ID: id, TicketID: ticketID, FrequencyDays: frequencyDays, Active: true}
	for i, ch := range chans {
		r.Channels = append(r.Channels, models.ReminderChannel{ID: int64(i + 1), ReminderID: id, Channel: ch, Enabled: true})
	}
	m.byID[id] = r
	return id, nil
}

func (m *memReminders) GetByID(_ context.Context, id int64) (*models.Reminder, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memReminders) ListActive(_ context.Context) ([]models.Reminder, error) {
	var out []models.Reminder
	for _, r := range m.byID {
		if r.Active {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memReminders) ListByUser(_ context.Context, _ int64) ([]models.Reminder, error) {
	var out []models.Reminder
	for _, r := range m.byID {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memReminders) Update(_ context.Context, id int64, upd models.ReminderUpdate) error {
	r, ok := m.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	if upd.FrequencyDays != nil {
		r.FrequencyDays = *upd.FrequencyDays
	}
	if upd.Active != nil {
		r.Active = *upd.Active
	}
	if upd.Channels != nil {
		r.Channels = nil
		for i, ch := range upd.Channels {
			r.Channels = append(r.Channels, models.ReminderChannel{ID: int64(i + 1), ReminderID: id, Channel: ch, Enabled: true})
		}
	}
	return nil
}

func (m *memReminders) Delete(_ context.Context, id int64) error {
	if _, ok := m.byID[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memRecords struct {
	rows   []*models.Notification
	nextID int64
}

func (m *memRecords) Create(_ context.Context, n *models.Notification) (int64, error) {
	m.nextID++
	cp := *n
	cp.ID = m.nextID
	cp.CreatedAt = time.Now()
	m.rows = append(m.rows, &cp)
	return cp.ID, nil
}

func (m *memRecords) MarkSent(_ context.Context, id int64, sentAt time.Time) error {
	for _, r := range m.rows {
		if r.ID == id {
			r.Status = models.NotificationSent
			r.SentAt = &sentAt
			r.ErrorMessage = ""
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memRecords) MarkFailed(_ context.Context, id int64, errMsg string) error {
	for _, r := range m.rows {
		if r.ID == id {
			r.Status = models.NotificationFailed
			r.ErrorMessage = errMsg
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memRecords) LastSentAt(_ context.Context, reminderID int64) (*time.Time, error) {
	var last *time.Time
	for _, r := range m.rows {
		if r.ReminderID == nil || *r.ReminderID != reminderID {
			continue
		}
		if r.Status != models.NotificationSent || r.SentAt == nil {
			continue
		}
		if last == nil || r.SentAt.After(*last) {
			last = r.SentAt
		}
	}
	return last, nil
}

func (m *memRecords) ListByUser(_ context.Context, userID int64, limit int) ([]models.Notification, error) {
	var out []models.Notification
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if m.rows[i].UserID == userID {
			out = append(out, *m.rows[i])
		}
	}
	return out, nil
}

func (m *memRecords) forReminder(reminderID int64) []*models.Notification {
	var out []*models.Notification
	for _, r := range m.rows {
		if r.ReminderID != nil && *r.ReminderID == reminderID {
			out = append(out, r)
		}
	}
	return out
}

// memLocker is a process-local Locker.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// stubSender returns a fixed outcome, or panics when told to.
type stubSender struct {
	outcome channels.Outcome
	panics  bool
	calls   int
}

func (s *stubSender) Send(_ context.Context, _ *models.User, _ channels.Message) channels.Outcome {
	s.calls++
	if s.panics {
		panic("transport blew up")
	}
	return s.outcome
}

type engineFixture struct {
	users     *memUsers
	tickets   *memTickets
	reminders *memReminders
	records   *memRecords
	senders   channels.SenderMap
	engine    *ReminderEngine
}

func newEngineFixture(senders channels.SenderMap) *engineFixture {
	f := &engineFixture{
		users:     &memUsers{byID: make(map[int64]*models.User)},
		tickets:   &memTickets{byID: make(map[int64]*models.Ticket)},
		reminders: &memReminders{byID: make(map[int64]*models.Reminder)},
		records:   &memRecords{},
		senders:   senders,
	}
	notifier := NewNotificationService(f.users, f.records, senders)
	f.engine = NewReminderEngine(f.reminders, f.tickets, f.records, notifier, newMemLocker())
	return f
}

func (f *engineFixture) seedUserAndTicket(t *testing.T, phone string, status models.TicketStatus) *models.Ticket {
	t.Helper()
	_, err := f.users.Create(context.Background(), &models.User{
		FullName: "Dana Reeve",
		Email:    "dana@example.com",
		Phone:    phone,
		IsActive: true,
	})
	require.NoError(t, err)

	ticket := &models.Ticket{UserID: 1, TicketNumber: "42", AmountUSD: 75, Status: status}
	_, err = f.tickets.Create(context.Background(), ticket)
	require.NoError(t, err)
	return ticket
}

func TestListDueSkipsInactive(t *testing.T) {
	f := newEngineFixture(channels.SenderMap{})
	f.seedUserAndTicket(t, "", models.TicketOpen)

	id, err := f.reminders.Create(context.Background(), 1, 1, []models.Channel{models.ChannelEmail})
	require.NoError(t, err)
	inactive := false
	require.NoError(t, f.reminders.Update(context.Background(), id, models.ReminderUpdate{Active: &inactive}))

	due, err := f.engine.ListDue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestListDueNeverSentIsDueImmediately(t *testing.T) {
	f := newEngineFixture(channels.SenderMap{})
	f.seedUserAndTicket(t, "", models.TicketOpen)

	_, err := f.reminders.Create(context.Background(), 1, 365, []models.Channel{models.ChannelEmail})
	require.NoError(t, err)

	due, err := f.engine.ListDue(context.Background())
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestListDueFrequencyBoundary(t *testing.T) {
	f := newEngineFixture(channels.SenderMap{})
	f.seedUserAndTicket(t, "", models.TicketOpen)

	reminderID, err := f.reminders.Create(context.Background(), 1, 7, []models.Channel{models.ChannelEmail})
	require.NoError(t, err)

	lastSent := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := f.records.Create(context.Background(), &models.Notification{
		UserID: 1, ReminderID: &reminderID, Channel: models.ChannelEmail,
	})
	require.NoError(t, err)
	require.NoError(t, f.records.MarkSent(context.Background(), id, lastSent))

	f.engine.now = func() time.Time { return lastSent.AddDate(0, 0, 7).Add(-time.Second) }
	due, err := f.engine.ListDue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, due, "one second before the boundary must not be due")

	f.engine.now = func() time.Time { return lastSent.AddDate(0, 0, 7) }
	due, err = f.engine.ListDue(context.Background())
	require.NoError(t, err)
	assert.Len(t, due, 1, "the boundary instant itself is due")
}

func TestDispatchResolvedTicketSkips(t *testing.T) {
	email := &stubSender{outcome: channels.Outcome{OK: true}}
	f := newEngineFixture(channels.SenderMap{models.ChannelEmail: email})
	f.seedUserAndTicket(t, "", models.TicketResolved)

	reminderID, err := f.reminders.Create(context.Background(), 1, 7, []models.Channel{models.ChannelEmail})
	require.NoError(t, err)
	r, err := f.reminders.GetByID(context.Background(), reminderID)
	require.NoError(t, err)

	counts, err := f.engine.Dispatch(context.Background(), r)
	require.NoError(t, err)
	assert.Nil(t, counts)
	assert.Empty(t, f.records.rows)
	assert.Zero(t, email.calls)
}

func TestDispatchIsolatesChannelFailures(t *testing.T) {
	email := &stubSender{outcome: channels.Outcome{OK: true}}
	sms := &stubSender{panics: true}
	f := newEngineFixture(channels.SenderMap{
		models.ChannelEmail: email,
		models.ChannelSMS:   sms,
	})
	f.seedUserAndTicket(t, "+15550100", models.TicketOpen)

	reminderID, err := f.reminders.Create(context.Background(), 1, 7, []models.Channel{models.ChannelEmail, models.ChannelSMS})
	require.NoError(t, err)
	r, err := f.reminders.GetByID(context.Background(), reminderID)
	require.NoError(t, err)

	counts, err := f.engine.Dispatch(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"email": 1, "sms": 0}, counts)

	rows := f.records.forReminder(reminderID)
	require.Len(t, rows, 2)
	byChannel := map[models.Channel]*models.Notification{}
	for _, row := range rows {
		byChannel[row.Channel] = row
	}
	assert.Equal(t, models.NotificationSent, byChannel[models.ChannelEmail].Status)
	assert.NotNil(t, byChannel[models.ChannelEmail].SentAt)
	assert.Equal(t, models.NotificationFailed, byChannel[models.ChannelSMS].Status)
	assert.Contains(t, byChannel[models.ChannelSMS].ErrorMessage, "panic")
}

func TestDispatchMissingPhoneFailsValidation(t *testing.T) {
	email := &stubSender{outcome: channels.Outcome{OK: true}}
	f := newEngineFixture(channels.SenderMap{
		models.ChannelEmail: email,
		models.ChannelSMS:   channels.NewSMSSender(),
	})
	f.seedUserAndTicket(t, "", models.TicketOpen)

	reminderID, err := f.reminders.Create(context.Background(), 1, 7, []models.Channel{models.ChannelEmail, models.ChannelSMS})
	require.NoError(t, err)
	r, err := f.reminders.GetByID(context.Background(), reminderID)
	require.NoError(t, err)

	counts, err := f.engine.Dispatch(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"email": 1, "sms": 0}, counts)

	for _, row := range f.records.forReminder(reminderID) {
		if row.Channel == models.ChannelSMS {
			assert.Equal(t, models.NotificationFailed, row.Status)
			assert.Contains(t, row.ErrorMessage, "phone")
		}
	}
}

func TestDispatchSkipsWhenLeaseHeld(t *testing.T) {
	email := &stubSender{outcome: channels.Outcome{OK: true}}
	f := newEngineFixture(channels.SenderMap{models.ChannelEmail: email})
	f.seedUserAndTicket(t, "", models.TicketOpen)

	reminderID, err := f.reminders.Create(context.Background(), 1, 7, []models.Channel{models.ChannelEmail})
	require.NoError(t, err)
	r, err := f.reminders.GetByID(context.Background(), reminderID)
	require.NoError(t, err)

	locker := f.engine.locker
	held, err := locker.Acquire(context.Background(), fmt.Sprintf("reminder:lease:%d", reminderID), time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	counts, err := f.engine.Dispatch(context.Background(), r)
	require.NoError(t, err)
	assert.Nil(t, counts)
	assert.Empty(t, f.records.rows)
}

func TestProcessDueAggregatesAcrossReminders(t *testing.T) {
	email := &stubSender{outcome: channels.Outcome{OK: true}}
	f := newEngineFixture(channels.SenderMap{models.ChannelEmail: email})
	f.seedUserAndTicket(t, "", models.TicketOpen)

	second := &models.Ticket{UserID: 1, TicketNumber: "43", AmountUSD: 30, Status: models.TicketOpen}
	_, err := f.tickets.Create(context.Background(), second)
	require.NoError(t, err)

	_, err = f.reminders.Create(context.Background(), 1, 7, []models.Channel{models.ChannelEmail})
	require.NoError(t, err)
	_, err = f.reminders.Create(context.Background(), 2, 7, []models.Channel{models.ChannelEmail})
	require.NoError(t, err)

	summary, err := f.engine.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, map[string]int{"email": 2}, summary.Channels)
}

func TestComposeReminderBodyPluralAware(t *testing.T) {
	single := []models.Ticket{{TicketNumber: "42", AmountUSD: 75}}
	body := composeReminderBody(&single[0], single)
	assert.Contains(t, body, "ticket 42")
	assert.Contains(t, body, "$75.00")

	many := []models.Ticket{
		{TicketNumber: "42", AmountUSD: 75},
		{TicketNumber: "43", AmountUSD: 25},
	}
	body = composeReminderBody(&many[0], many)
	assert.Contains(t, body, "2 tickets")
	assert.Contains(t, body, "$100.00")
}

func TestDeliverUnknownUser(t *testing.T) {
	f := newEngineFixture(channels.SenderMap{})
	notifier := NewNotificationService(f.users, f.records, f.senders)

	_, err := notifier.Deliver(context.Background(), &models.Notification{UserID: 99, Channel: models.ChannelEmail, Message: "hi"})
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
