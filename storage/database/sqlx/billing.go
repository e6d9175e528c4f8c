package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/billing"
)

const (
	subscriptionColumns = "id, player_id, plan_name, amount, currency, billing_interval, start_date, next_billing_date, status, created_at, updated_at"
	invoiceColumns      = "id, number, player_id, subscription_id, period_start, description, amount, amount_paid, currency, issue_date, due_date, status, last_reminder_at, created_at, updated_at"
	paymentColumns      = "id, number, invoice_id, amount, method, paid_at, reference, recorded_by, created_at"
)

var invoiceOrderings = []string{"number", "issue_date", "due_date", "amount", "status", "created_at"}

type billingRepository struct {
	db core.DB
}

var _ billing.Repository = (*billingRepository)(nil)

func NewBillingRepository(db core.DB) *billingRepository {
	return &billingRepository{db: db}
}

// Subscriptions

func (repo billingRepository) CreateSubscription(ctx context.Context, s billing.Subscription) (billing.Subscription, error) {
	q := "INSERT INTO subscriptions (" + subscriptionColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := execute(ctx, repo.db, q,
		s.ID, s.PlayerID, s.PlanName, s.Amount, s.Currency, s.Interval, s.StartDate, s.NextBillingDate,
		s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return billing.Subscription{}, errors.Wrap(err, "inserting subscription")
	}
	return s, nil
}

func (repo billingRepository) QuerySubscriptions(ctx context.Context, filter *billing.SubscriptionFilter) ([]billing.Subscription, error) {
	var w where
	if filter != nil {
		w.in("player_id", filter.PlayerIDs)
		if filter.Status != "" {
			w.add("status = ?", filter.Status)
		}
	}
	subs := make([]billing.Subscription, 0)
	q := "SELECT " + subscriptionColumns + " FROM subscriptions" + w.String() + " ORDER BY created_at DESC"
	if err := selectAll(ctx, repo.db, &subs, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying subscriptions")
	}
	return subs, nil
}

func (repo billingRepository) GetSubscription(ctx context.Context, id string, exec ...core.DBExecutor) (billing.Subscription, error) {
	var s billing.Subscription
	err := get(ctx, core.PickExecutor(repo.db, exec...), &s, "SELECT "+subscriptionColumns+" FROM subscriptions WHERE id = ?", id)
	if err != nil {
		return billing.Subscription{}, trapNoRows(err, billing.ErrSubscriptionNotFound, "finding subscription")
	}
	return s, nil
}

func (repo billingRepository) UpdateSubscription(ctx context.Context, s billing.Subscription) (billing.Subscription, error) {
	q := `UPDATE subscriptions SET plan_name = ?, amount = ?, billing_interval = ?, next_billing_date = ?, status = ?,
		updated_at = ? WHERE id = ?`
	n, err := execute(ctx, repo.db, q, s.PlanName, s.Amount, s.Interval, s.NextBillingDate, s.Status, s.UpdatedAt, s.ID)
	if err != nil {
		return billing.Subscription{}, errors.Wrap(err, "updating subscription")
	}
	if n == 0 {
		return billing.Subscription{}, billing.ErrSubscriptionNotFound
	}
	return s, nil
}

func (repo billingRepository) DeleteSubscription(ctx context.Context, id string) error {
	if _, err := execute(ctx, repo.db, "DELETE FROM subscriptions WHERE id = ?", id); err != nil {
		return errors.Wrap(err, "deleting subscription")
	}
	return nil
}

func (repo billingRepository) DueSubscriptions(ctx context.Context, day core.Date) ([]billing.Subscription, error) {
	subs := make([]billing.Subscription, 0)
	q := "SELECT " + subscriptionColumns + " FROM subscriptions WHERE status = ? AND next_billing_date <= ? ORDER BY next_billing_date, id"
	if err := selectAll(ctx, repo.db, &subs, q, billing.SubscriptionActive, day); err != nil {
		return nil, errors.Wrap(err, "querying due subscriptions")
	}
	return subs, nil
}

func (repo billingRepository) AdvanceSubscription(ctx context.Context, id string, from, to core.Date, exec ...core.DBExecutor) (bool, error) {
	q := "UPDATE subscriptions SET next_billing_date = ?, updated_at = ? WHERE id = ? AND next_billing_date = ? AND status = ?"
	n, err := execute(ctx, core.PickExecutor(repo.db, exec...), q, to, core.Now(), id, from, billing.SubscriptionActive)
	if err != nil {
		return false, errors.Wrap(err, "advancing subscription")
	}
	return n == 1, nil
}

// Numbering

func (repo billingRepository) NextSequence(ctx context.Context, prefix string, year int, exec ...core.DBExecutor) (int, error) {
	exe := core.PickExecutor(repo.db, exec...)
	q := "INSERT INTO document_sequences (prefix, year, last_value) VALUES (?, ?, 0) ON CONFLICT (prefix, year) DO NOTHING"
	if _, err := execute(ctx, exe, q, prefix, year); err != nil {
		return 0, errors.Wrap(err, "initializing sequence")
	}
	var seq int
	q = "UPDATE document_sequences SET last_value = last_value + 1 WHERE prefix = ? AND year = ? RETURNING last_value"
	if err := get(ctx, exe, &seq, q, prefix, year); err != nil {
		return 0, errors.Wrap(err, "incrementing sequence")
	}
	return seq, nil
}

// Invoices

func (repo billingRepository) CreateInvoice(ctx context.Context, inv billing.Invoice, exec ...core.DBExecutor) (billing.Invoice, error) {
	q := "INSERT INTO invoices (" + invoiceColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := execute(ctx, core.PickExecutor(repo.db, exec...), q,
		inv.ID, inv.Number, inv.PlayerID, inv.SubscriptionID, inv.PeriodStart, inv.Description, inv.Amount,
		inv.AmountPaid, inv.Currency, inv.IssueDate, inv.DueDate, inv.Status, inv.LastReminderAt,
		inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return billing.Invoice{}, billing.ErrDuplicateInvoice
		}
		return billing.Invoice{}, errors.Wrap(err, "inserting invoice")
	}
	return inv, nil
}

func (repo billingRepository) InvoiceExists(ctx context.Context, subscriptionID string, periodStart core.Date, exec ...core.DBExecutor) (bool, error) {
	var n int
	q := "SELECT COUNT(*) FROM invoices WHERE subscription_id = ? AND period_start = ?"
	if err := get(ctx, core.PickExecutor(repo.db, exec...), &n, q, subscriptionID, periodStart); err != nil {
		return false, errors.Wrap(err, "checking invoice")
	}
	return n > 0, nil
}

func (repo billingRepository) QueryInvoices(ctx context.Context, filter *billing.InvoiceFilter, orderings []core.DBOrdering) ([]billing.Invoice, error) {
	var (
		w         where
		pageLimit int
	)
	if filter != nil {
		w.in("player_id", filter.PlayerIDs)
		if filter.SubscriptionID != "" {
			w.add("subscription_id = ?", filter.SubscriptionID)
		}
		if len(filter.Statuses) > 0 {
			w.in("status", filter.Statuses)
		}
		w.search(filter.Search, "number", "description")
		if !filter.IssuedFrom.IsZero() {
			w.add("issue_date >= ?", filter.IssuedFrom)
		}
		if !filter.IssuedTo.IsZero() {
			w.add("issue_date <= ?", filter.IssuedTo)
		}
		pageLimit = filter.Limit
	}

	invoices := make([]billing.Invoice, 0)
	q := "SELECT " + invoiceColumns + " FROM invoices" + w.String() +
		core.OrderByClause(orderings, invoiceOrderings, "issue_date DESC, number DESC") + limit(pageLimit)
	if err := selectAll(ctx, repo.db, &invoices, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying invoices")
	}
	return invoices, nil
}

func (repo billingRepository) GetInvoice(ctx context.Context, id string, exec ...core.DBExecutor) (billing.Invoice, error) {
	var inv billing.Invoice
	err := get(ctx, core.PickExecutor(repo.db, exec...), &inv, "SELECT "+invoiceColumns+" FROM invoices WHERE id = ?", id)
	if err != nil {
		return billing.Invoice{}, trapNoRows(err, billing.ErrInvoiceNotFound, "finding invoice")
	}
	return inv, nil
}

func (repo billingRepository) UpdateInvoice(ctx context.Context, inv billing.Invoice, exec ...core.DBExecutor) (billing.Invoice, error) {
	q := "UPDATE invoices SET description = ?, due_date = ?, status = ?, last_reminder_at = ?, updated_at = ? WHERE id = ?"
	n, err := execute(ctx, core.PickExecutor(repo.db, exec...), q,
		inv.Description, inv.DueDate, inv.Status, inv.LastReminderAt, inv.UpdatedAt, inv.ID)
	if err != nil {
		return billing.Invoice{}, errors.Wrap(err, "updating invoice")
	}
	if n == 0 {
		return billing.Invoice{}, billing.ErrInvoiceNotFound
	}
	return inv, nil
}

func (repo billingRepository) ApplyPayment(ctx context.Context, inv billing.Invoice, prevPaid decimal.Decimal, exec ...core.DBExecutor) (bool, error) {
	q := "UPDATE invoices SET amount_paid = ?, status = ?, updated_at = ? WHERE id = ? AND amount_paid = ?"
	n, err := execute(ctx, core.PickExecutor(repo.db, exec...), q, inv.AmountPaid, inv.Status, inv.UpdatedAt, inv.ID, prevPaid)
	if err != nil {
		return false, errors.Wrap(err, "applying payment")
	}
	return n == 1, nil
}

func (repo billingRepository) MarkOverdue(ctx context.Context, day core.Date, now time.Time) (int, error) {
	q := "UPDATE invoices SET status = ?, updated_at = ? WHERE status IN (?) AND due_date < ?"
	n, err := execute(ctx, repo.db, q,
		billing.InvoiceOverdue, now, []string{billing.InvoicePending, billing.InvoicePartiallyPaid}, day)
	if err != nil {
		return 0, errors.Wrap(err, "marking overdue invoices")
	}
	return int(n), nil
}

// Payments

func (repo billingRepository) CreatePayment(ctx context.Context, p billing.Payment, exec ...core.DBExecutor) (billing.Payment, error) {
	q := "INSERT INTO payments (" + paymentColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := execute(ctx, core.PickExecutor(repo.db, exec...), q,
		p.ID, p.Number, p.InvoiceID, p.Amount, p.Method, p.PaidAt, p.Reference, p.RecordedBy, p.CreatedAt)
	if err != nil {
		return billing.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo billingRepository) QueryPayments(ctx context.Context, filter *billing.PaymentFilter) ([]billing.Payment, error) {
	var w where
	if filter != nil {
		if filter.InvoiceID != "" {
			w.add("invoice_id = ?", filter.InvoiceID)
		}
		if filter.PlayerIDs != nil {
			if len(filter.PlayerIDs) == 0 {
				w.add("1 = 0")
			} else {
				w.add("invoice_id IN (SELECT id FROM invoices WHERE player_id IN (?))", filter.PlayerIDs)
			}
		}
	}
	payments := make([]billing.Payment, 0)
	q := "SELECT " + paymentColumns + " FROM payments" + w.String() + " ORDER BY paid_at DESC, number DESC"
	if err := selectAll(ctx, repo.db, &payments, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	return payments, nil
}

func (repo billingRepository) Summary(ctx context.Context, playerIDs []string) (billing.Summary, error) {
	var w where
	w.add("status <> ?", billing.InvoiceCancelled)
	w.in("player_id", playerIDs)

	var row struct {
		Billed        decimal.Decimal `db:"billed"`
		Collected     decimal.Decimal `db:"collected"`
		OpenCount     int             `db:"open_count"`
		OverdueCount  int             `db:"overdue_count"`
		OverdueAmount decimal.Decimal `db:"overdue_amount"`
	}
	q := `SELECT
		COALESCE(SUM(amount), 0) AS billed,
		COALESCE(SUM(amount_paid), 0) AS collected,
		COALESCE(SUM(CASE WHEN status IN ('pending', 'partially_paid', 'overdue') THEN 1 ELSE 0 END), 0) AS open_count,
		COALESCE(SUM(CASE WHEN status = 'overdue' THEN 1 ELSE 0 END), 0) AS overdue_count,
		COALESCE(SUM(CASE WHEN status = 'overdue' THEN amount - amount_paid ELSE 0 END), 0) AS overdue_amount
		FROM invoices` + w.String()
	if err := get(ctx, repo.db, &row, q, w.args...); err != nil {
		return billing.Summary{}, errors.Wrap(err, "summarizing invoices")
	}
	// sqlite sums NUMERIC columns as floats
	return billing.Summary{
		Billed:        row.Billed.Round(2),
		Collected:     row.Collected.Round(2),
		OpenCount:     row.OpenCount,
		OverdueCount:  row.OverdueCount,
		OverdueAmount: row.OverdueAmount.Round(2),
	}, nil
}
