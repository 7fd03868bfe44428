package controller

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"debtflow/config"
	"debtflow/middleware"
	"debtflow/models"
	"debtflow/utils"

	"github.com/gofiber/fiber/v2"
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
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
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

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, IsActive: true, CompanyName: "Kowalski Sp. z o.o."}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func seedInvoice(t *testing.T, db *gorm.DB, user *models.User, due string) models.Invoice {
	t.Helper()
	debtor := models.Debtor{UserID: user.ID, Name: "Acme", Email: "debtor@example.com"}
	if err := db.Create(&debtor).Error; err != nil {
		t.Fatalf("create debtor: %v", err)
	}
	dueDate, err := utils.ParseDate(due)
	if err != nil {
		t.Fatalf("parse due date: %v", err)
	}
	invoice := models.Invoice{
		UserID:        user.ID,
		DebtorID:      debtor.ID,
		InvoiceNumber: "FV/1/2024",
		Amount:        decimal.NewFromInt(1000),
		Currency:      "PLN",
		DueDate:       datatypes.Date(dueDate),
		Status:        models.InvoiceStatusOverdue,
	}
	if err := db.Create(&invoice).Error; err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return invoice
}

// withUser stands in for the JWT gate
func withUser(user *models.User) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.UserLocalKey, user)
		return c.Next()
	}
}
