package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clefbook/clefbook-api/internal/models"
	appErrors "github.com/clefbook/clefbook-api/pkg/errors"
	"github.com/clefbook/clefbook-api/pkg/timeutil"
)

type mockInvoiceSlots struct {
	slots map[string]*models.RecurringSlot
	subs  []models.Subscription
}

func (m *mockInvoiceSlots) FindByID(ctx context.Context, id string) (*models.RecurringSlot, error) {
	if s, ok := m.slots[id]; ok {
		return s, nil
	}
	return nil, errors.New("slot not found")
}

func (m *mockInvoiceSlots) ListActiveSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	return m.subs, nil
}

type mockInvoiceBilling struct {
	existing  map[string]bool
	created   []*models.BillingRecord
	createErr map[string]error
}

func (m *mockInvoiceBilling) ExistsForMonth(ctx context.Context, subscriptionID, month string) (bool, error) {
	return m.existing[subscriptionID+"/"+month], nil
}

func (m *mockInvoiceBilling) Create(ctx context.Context, record *models.BillingRecord) error {
	if err, ok := m.createErr[record.SubscriptionID]; ok {
		return err
	}
	m.created = append(m.created, record)
	return nil
}

func newInvoiceFixture(slots *mockInvoiceSlots, billing *mockInvoiceBilling, records *mockJobRecorder) *InvoiceGenerator {
	g := NewInvoiceGenerator(slots, billing, records, NewBillingCalculator(), "USD", zap.NewNop())
	return g.WithClock(func() time.Time { return time.Date(2025, 9, 1, 2, 0, 0, 0, time.UTC) })
}

func mondaySubscriptionFixture(t *testing.T) (*mockInvoiceSlots, models.Subscription) {
	slot := mondaySlot(t, "rs1")
	sub := models.Subscription{
		ID:               "sub1",
		RecurringSlotID:  "rs1",
		TeacherID:        "t1",
		StudentID:        "s1",
		MonthlyRateCents: 20000,
		Active:           true,
	}
	return &mockInvoiceSlots{
		slots: map[string]*models.RecurringSlot{"rs1": &slot},
		subs:  []models.Subscription{sub},
	}, sub
}

func TestInvoiceGeneratorCreatesMonthlyRecord(t *testing.T) {
	slots, _ := mondaySubscriptionFixture(t)
	billing := &mockInvoiceBilling{}
	records := &mockJobRecorder{}
	g := newInvoiceFixture(slots, billing, records)

	result, err := g.RunForMonth(context.Background(), timeutil.Month{Year: 2025, Month: time.September})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Counts.InvoicesCreated)

	require.Len(t, billing.created, 1)
	record := billing.created[0]
	assert.Equal(t, "2025-09", record.Month)
	assert.Equal(t, 5, record.ExpectedLessons)
	assert.Equal(t, int64(4000), record.RatePerLessonCents)
	assert.Equal(t, int64(20000), record.TotalAmountCents)
	assert.Equal(t, models.PaymentPending, record.Status)
	assert.Equal(t, "USD", record.Currency)

	require.Len(t, records.records, 1)
	assert.Equal(t, models.JobGenerateInvoices, records.records[0].JobName)
}

func TestInvoiceGeneratorSkipsInvoicedSubscription(t *testing.T) {
	slots, _ := mondaySubscriptionFixture(t)
	billing := &mockInvoiceBilling{existing: map[string]bool{"sub1/2025-09": true}}
	g := newInvoiceFixture(slots, billing, &mockJobRecorder{})

	result, err := g.RunForMonth(context.Background(), timeutil.Month{Year: 2025, Month: time.September})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.Counts.InvoicesCreated)
	assert.Empty(t, billing.created)
	assert.Empty(t, result.Errors)
}

func TestInvoiceGeneratorTreatsConstraintRaceAsSkip(t *testing.T) {
	slots, _ := mondaySubscriptionFixture(t)
	billing := &mockInvoiceBilling{createErr: map[string]error{
		"sub1": appErrors.Clone(appErrors.ErrAlreadyInvoiced, ""),
	}}
	g := newInvoiceFixture(slots, billing, &mockJobRecorder{})

	result, err := g.RunForMonth(context.Background(), timeutil.Month{Year: 2025, Month: time.September})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
}

func TestInvoiceGeneratorContinuesPastFailingSubscription(t *testing.T) {
	slot1 := mondaySlot(t, "rs1")
	slot2 := mondaySlot(t, "rs2")
	slots := &mockInvoiceSlots{
		slots: map[string]*models.RecurringSlot{"rs1": &slot1, "rs2": &slot2},
		subs: []models.Subscription{
			{ID: "sub1", RecurringSlotID: "rs1", TeacherID: "t1", StudentID: "s1", MonthlyRateCents: 20000, Active: true},
			{ID: "sub2", RecurringSlotID: "rs2", TeacherID: "t1", StudentID: "s2", MonthlyRateCents: 16000, Active: true},
		},
	}
	billing := &mockInvoiceBilling{createErr: map[string]error{"sub1": errors.New("insert failed")}}
	records := &mockJobRecorder{}
	g := newInvoiceFixture(slots, billing, records)

	result, err := g.RunForMonth(context.Background(), timeutil.Month{Year: 2025, Month: time.September})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "sub1", result.Errors[0].ItemID)
	assert.Equal(t, 1, result.Counts.InvoicesCreated)
	require.Len(t, billing.created, 1)
	assert.Equal(t, "sub2", billing.created[0].SubscriptionID)

	require.Len(t, records.records, 1)
	assert.False(t, records.records[0].Success)
}

func TestInvoiceGeneratorRunUsesCurrentMonth(t *testing.T) {
	slots, _ := mondaySubscriptionFixture(t)
	billing := &mockInvoiceBilling{}
	g := newInvoiceFixture(slots, billing, &mockJobRecorder{})

	result, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counts.InvoicesCreated)
	require.Len(t, billing.created, 1)
	assert.Equal(t, "2025-09", billing.created[0].Month)
}
