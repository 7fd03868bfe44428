package utils

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"debtflow/config"
	"debtflow/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

type fixture struct {
	user    models.User
	debtor  models.Debtor
	invoice models.Invoice
}

func seedInvoice(t *testing.T, db *gorm.DB, dueDate time.Time) fixture {
	t.Helper()

	user := models.User{
		Email:       "owner@example.com",
		IsActive:    true,
		CompanyName: "Kowalski Sp. z o.o.",
		BankAccount: "PL61 1090 1014 0000 0712 1981 2874",
		SMSSender:   "Kowalski",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	debtor := models.Debtor{
		UserID: user.ID,
		Name:   "Acme",
		Email:  "debtor@example.com",
		Phone:  "500 100 200",
	}
	if err := db.Create(&debtor).Error; err != nil {
		t.Fatalf("create debtor: %v", err)
	}
	invoice := models.Invoice{
		UserID:        user.ID,
		DebtorID:      debtor.ID,
		InvoiceNumber: "FV/1/2024",
		Amount:        decimal.NewFromInt(1000),
		Currency:      "PLN",
		DueDate:       datatypes.Date(dueDate),
		Status:        models.InvoiceStatusPending,
	}
	if err := db.Create(&invoice).Error; err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return fixture{user: user, debtor: debtor, invoice: invoice}
}

func seedSequence(t *testing.T, db *gorm.DB, userID uint, steps ...models.SequenceStep) models.Sequence {
	t.Helper()

	sequence := models.Sequence{UserID: userID, Name: "Standard", Steps: steps}
	if err := db.Create(&sequence).Error; err != nil {
		t.Fatalf("create sequence: %v", err)
	}
	return sequence
}

func emailStep(order, offset int) models.SequenceStep {
	return models.SequenceStep{
		StepOrder:  order,
		DaysOffset: offset,
		Channel:    models.ChannelEmail,
		Subject:    "Faktura {{invoice_number}}",
		Body:       "Dzień dobry {{debtor_name}}, do zapłaty {{total_with_interest}}.",
	}
}

func smsStep(order, offset int) models.SequenceStep {
	return models.SequenceStep{
		StepOrder:  order,
		DaysOffset: offset,
		Channel:    models.ChannelSMS,
		Body:       "{{company_name}}: faktura {{invoice_number}} po terminie {{days_overdue}} dni.",
	}
}

func stepsFor(t *testing.T, db *gorm.DB, invoiceID uint) []models.ScheduledStep {
	t.Helper()

	var steps []models.ScheduledStep
	if err := db.Where("invoice_id = ?", invoiceID).
		Order("scheduled_for ASC").
		Order("id ASC").
		Find(&steps).Error; err != nil {
		t.Fatalf("load scheduled steps: %v", err)
	}
	return steps
}

func countByStatus(steps []models.ScheduledStep, status models.ScheduledStepStatus) int {
	n := 0
	for _, s := range steps {
		if s.Status == status {
			n++
		}
	}
	return n
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (f *fakeMailer) Send(email Email) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, email)
	return fmt.Sprintf("mail-%d", len(f.sent)), nil
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []SMS
	err  error
}

func (f *fakeSMS) SendSMS(_ context.Context, sms SMS) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sms)
	return fmt.Sprintf("sms-%d", len(f.sent)), nil
}
