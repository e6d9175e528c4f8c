package billing

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/touchline/academy/core"
)

// Subscription intervals
const (
	IntervalMonthly   = "monthly"
	IntervalQuarterly = "quarterly"
	IntervalYearly    = "yearly"
)

// Subscription statuses
const (
	SubscriptionActive    = "active"
	SubscriptionPaused    = "paused"
	SubscriptionCancelled = "cancelled"
)

// Invoice statuses
const (
	InvoicePending       = "pending"
	InvoicePartiallyPaid = "partially_paid"
	InvoicePaid          = "paid"
	InvoiceOverdue       = "overdue"
	InvoiceCancelled     = "cancelled"
)

// Payment methods
const (
	MethodCash         = "cash"
	MethodCard         = "card"
	MethodBankTransfer = "bank_transfer"
	MethodOther        = "other"
)

// Document number prefixes
const (
	InvoicePrefix = "INV"
	PaymentPrefix = "PAY"
)

var (
	Intervals        = []string{IntervalMonthly, IntervalQuarterly, IntervalYearly}
	InvoiceStatuses  = []string{InvoicePending, InvoicePartiallyPaid, InvoicePaid, InvoiceOverdue, InvoiceCancelled}
	PaymentMethods   = []string{MethodCash, MethodCard, MethodBankTransfer, MethodOther}
	openInvoiceState = []string{InvoicePending, InvoicePartiallyPaid, InvoiceOverdue}
)

type Subscription struct {
	ID              string          `json:"id" db:"id"`
	PlayerID        string          `json:"player_id" db:"player_id"`
	PlanName        string          `json:"plan_name" db:"plan_name"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Currency        string          `json:"currency" db:"currency"`
	Interval        string          `json:"interval" db:"billing_interval"`
	StartDate       core.Date       `json:"start_date" db:"start_date"`
	NextBillingDate core.Date       `json:"next_billing_date" db:"next_billing_date"`
	Status          string          `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

func (s Subscription) IsActive() bool { return s.Status == SubscriptionActive }

// IsDue reports whether an invoice should be generated for the subscription on day.
func (s Subscription) IsDue(day core.Date) bool {
	return s.IsActive() && !s.NextBillingDate.IsZero() && !s.NextBillingDate.After(day)
}

type Invoice struct {
	ID             string          `json:"id" db:"id"`
	Number         string          `json:"number" db:"number"`
	PlayerID       string          `json:"player_id" db:"player_id"`
	SubscriptionID null.String     `json:"subscription_id" db:"subscription_id"`
	PeriodStart    core.Date       `json:"period_start" db:"period_start"`
	Description    string          `json:"description" db:"description"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	AmountPaid     decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	Currency       string          `json:"currency" db:"currency"`
	IssueDate      core.Date       `json:"issue_date" db:"issue_date"`
	DueDate        core.Date       `json:"due_date" db:"due_date"`
	Status         string          `json:"status" db:"status"`
	LastReminderAt null.Time       `json:"last_reminder_at" db:"last_reminder_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Balance is the amount left to pay.
func (inv Invoice) Balance() decimal.Decimal {
	return inv.Amount.Sub(inv.AmountPaid)
}

// IsClosed reports whether the invoice no longer accepts payments.
func (inv Invoice) IsClosed() bool {
	return inv.Status == InvoicePaid || inv.Status == InvoiceCancelled
}

// IsPastDue reports whether an open invoice was due before day.
func (inv Invoice) IsPastDue(day core.Date) bool {
	return core.StringIn(inv.Status, openInvoiceState...) && inv.DueDate.Before(day)
}

// statusAfterPayment returns the status of the invoice once paid reaches the given total.
func (inv Invoice) statusAfterPayment(paid decimal.Decimal) string {
	switch {
	case paid.GreaterThanOrEqual(inv.Amount):
		return InvoicePaid
	case inv.Status == InvoiceOverdue:
		return InvoiceOverdue
	case paid.IsPositive():
		return InvoicePartiallyPaid
	}
	return InvoicePending
}

type Payment struct {
	ID         string          `json:"id" db:"id"`
	Number     string          `json:"number" db:"number"`
	InvoiceID  string          `json:"invoice_id" db:"invoice_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Method     string          `json:"method" db:"method"`
	PaidAt     time.Time       `json:"paid_at" db:"paid_at"`
	Reference  string          `json:"reference" db:"reference"`
	RecordedBy null.String     `json:"recorded_by" db:"recorded_by"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

type NewSubscription struct {
	PlayerID  string          `json:"player_id" validate:"required,entityid"`
	PlanName  string          `json:"plan_name" validate:"required,max=120"`
	Amount    decimal.Decimal `json:"amount" validate:"required,money"`
	Currency  string          `json:"currency" validate:"required,currency"`
	Interval  string          `json:"interval" validate:"required,oneof=monthly quarterly yearly"`
	StartDate core.Date       `json:"start_date" validate:"required"`
}

func (ns *NewSubscription) Validate(validate *validator.Validate) error {
	ns.PlanName = core.CleanString(ns.PlanName)
	ns.Interval = core.CleanString(ns.Interval, true /* lower */)
	ns.Currency = normalizeCurrency(ns.Currency)
	return validate.Struct(ns)
}

type UpdateSubscription struct {
	PlanName        *string          `json:"plan_name" validate:"omitempty,max=120"`
	Amount          *decimal.Decimal `json:"amount" validate:"omitempty,money"`
	Interval        *string          `json:"interval" validate:"omitempty,oneof=monthly quarterly yearly"`
	Status          *string          `json:"status" validate:"omitempty,oneof=active paused cancelled"`
	NextBillingDate *core.Date       `json:"next_billing_date"`
}

func (us *UpdateSubscription) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}

type NewInvoice struct {
	PlayerID    string          `json:"player_id" validate:"required,entityid"`
	Description string          `json:"description" validate:"required,max=200"`
	Amount      decimal.Decimal `json:"amount" validate:"required,money"`
	Currency    string          `json:"currency" validate:"required,currency"`
	DueDate     core.Date       `json:"due_date"` // defaults to the configured due delay
}

func (ni *NewInvoice) Validate(validate *validator.Validate) error {
	ni.Description = core.CleanString(ni.Description)
	ni.Currency = normalizeCurrency(ni.Currency)
	if err := validate.Struct(ni); err != nil {
		return err
	}
	if !ni.DueDate.IsZero() && ni.DueDate.Before(core.DateOf(core.Now())) {
		return core.NewFieldError("due_date", "due date cannot be in the past")
	}
	return nil
}

type NewPayment struct {
	Amount    decimal.Decimal `json:"amount" validate:"required,money"`
	Method    string          `json:"method" validate:"required,oneof=cash card bank_transfer other"`
	PaidAt    *time.Time      `json:"paid_at"` // defaults to now
	Reference string          `json:"reference" validate:"max=120"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.Method = core.CleanString(np.Method, true /* lower */)
	np.Reference = core.CleanString(np.Reference)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.PaidAt != nil && np.PaidAt.After(core.Now().Add(time.Minute)) {
		return core.NewFieldError("paid_at", "payment date cannot be in the future")
	}
	return nil
}

func normalizeCurrency(c string) string {
	c = core.CleanString(c)
	if c == "" {
		return core.Conf.Billing.Currency
	}
	return strings.ToUpper(c)
}

type SubscriptionFilter struct {
	PlayerIDs []string // restricts the result to these players when not nil
	Status    string
}

type InvoiceFilter struct {
	PlayerIDs      []string // restricts the result to these players when not nil
	SubscriptionID string
	Statuses       []string
	Search         string // number or description
	IssuedFrom     core.Date
	IssuedTo       core.Date
	Limit          int
}

type PaymentFilter struct {
	InvoiceID string
	PlayerIDs []string // restricts the result to these players when not nil
}

// Summary aggregates the invoices in scope. Cancelled invoices are ignored.
type Summary struct {
	Currency      string          `json:"currency"`
	Billed        decimal.Decimal `json:"billed"`
	Collected     decimal.Decimal `json:"collected"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	OpenCount     int             `json:"open_count"`
	OverdueCount  int             `json:"overdue_count"`
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
}

// GenerationReport describes a GenerateInvoices run.
type GenerationReport struct {
	Generated []Invoice `json:"generated"`
	// Skipped counts periods already invoiced, by a previous or a concurrent run.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
