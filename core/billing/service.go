package billing

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/player"
	"github.com/touchline/academy/core/user"
)

// maxCatchUpPeriods bounds the number of periods invoiced for one subscription in a single run.
const maxCatchUpPeriods = 24

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrInvoiceClosed        = errors.New("invoice is closed")
	ErrInvoiceHasPayments   = errors.New("cannot cancel an invoice with payments")
	ErrOverpayment          = errors.New("payment exceeds the invoice balance")
	// ErrDuplicateInvoice is returned by repositories when an invoice number or subscription period is already taken.
	ErrDuplicateInvoice = errors.New("invoice already exists")

	// errConcurrentUpdate is returned when a row changed between read and write.
	errConcurrentUpdate = errors.New("concurrent update")
)

type (
	Repository interface {
		CreateSubscription(ctx context.Context, s Subscription) (Subscription, error)
		QuerySubscriptions(ctx context.Context, filter *SubscriptionFilter) ([]Subscription, error)
		GetSubscription(ctx context.Context, id string, exec ...core.DBExecutor) (Subscription, error)
		UpdateSubscription(ctx context.Context, s Subscription) (Subscription, error)
		DeleteSubscription(ctx context.Context, id string) error
		// DueSubscriptions returns the active subscriptions whose next billing date is on or before day.
		DueSubscriptions(ctx context.Context, day core.Date) ([]Subscription, error)
		// AdvanceSubscription moves the next billing date from `from` to `to`.
		// It returns false when the stored date is no longer `from`.
		AdvanceSubscription(ctx context.Context, id string, from, to core.Date, exec ...core.DBExecutor) (bool, error)

		// NextSequence increments and returns the counter of prefix for year.
		NextSequence(ctx context.Context, prefix string, year int, exec ...core.DBExecutor) (int, error)

		CreateInvoice(ctx context.Context, inv Invoice, exec ...core.DBExecutor) (Invoice, error)
		InvoiceExists(ctx context.Context, subscriptionID string, periodStart core.Date, exec ...core.DBExecutor) (bool, error)
		QueryInvoices(ctx context.Context, filter *InvoiceFilter, orderings []core.DBOrdering) ([]Invoice, error)
		GetInvoice(ctx context.Context, id string, exec ...core.DBExecutor) (Invoice, error)
		UpdateInvoice(ctx context.Context, inv Invoice, exec ...core.DBExecutor) (Invoice, error)
		// ApplyPayment stores the new paid amount and status if amount_paid still equals prevPaid.
		ApplyPayment(ctx context.Context, inv Invoice, prevPaid decimal.Decimal, exec ...core.DBExecutor) (bool, error)
		// MarkOverdue flags the open invoices due before day and returns how many changed.
		MarkOverdue(ctx context.Context, day core.Date, now time.Time) (int, error)

		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		QueryPayments(ctx context.Context, filter *PaymentFilter) ([]Payment, error)

		Summary(ctx context.Context, playerIDs []string) (Summary, error)
	}

	Service interface {
		CreateSubscription(ctx context.Context, ns NewSubscription) (Subscription, error)
		QuerySubscriptions(ctx context.Context, filter *SubscriptionFilter) ([]Subscription, error)
		GetSubscription(ctx context.Context, id string) (Subscription, error)
		UpdateSubscription(ctx context.Context, s Subscription, us UpdateSubscription) (Subscription, error)
		DeleteSubscription(ctx context.Context, id string) error

		CreateInvoice(ctx context.Context, ni NewInvoice) (Invoice, error)
		QueryInvoices(ctx context.Context, filter *InvoiceFilter, orderings []core.DBOrdering) ([]Invoice, error)
		GetInvoice(ctx context.Context, id string) (Invoice, error)
		CancelInvoice(ctx context.Context, inv Invoice) (Invoice, error)
		// GenerateInvoices invoices every due period of the active subscriptions. It is safe to run concurrently.
		GenerateInvoices(ctx context.Context, now time.Time) (GenerationReport, error)
		MarkOverdue(ctx context.Context, now time.Time) (int, error)
		// SendReminders emails the parents of overdue invoices, at most once per reminder interval.
		SendReminders(ctx context.Context, now time.Time) (int, error)

		RecordPayment(ctx context.Context, inv Invoice, np NewPayment, recordedBy user.User) (Payment, Invoice, error)
		QueryPayments(ctx context.Context, filter *PaymentFilter) ([]Payment, error)

		Summary(ctx context.Context, playerIDs []string) (Summary, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		playerSvc player.Service
		usrSvc    user.Service
		mailSvc   core.EmailService
		logger    core.Logger
		// sendSync sends notifications before returning (CLI, tests)
		sendSync bool
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, playerSvc player.Service, usrSvc user.Service, mailSvc core.EmailService, logger core.Logger) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(playerSvc, "playerSvc"),
		vala.IsNotNil(usrSvc, "usrSvc"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{db: db, repo: repo, playerSvc: playerSvc, usrSvc: usrSvc, mailSvc: mailSvc, logger: logger}
}

// NewSyncService returns a Service which sends its notifications before returning, for short lived processes.
func NewSyncService(db core.DB, repo Repository, playerSvc player.Service, usrSvc user.Service, mailSvc core.EmailService, logger core.Logger) Service {
	svc := NewService(db, repo, playerSvc, usrSvc, mailSvc, logger).(*service)
	svc.sendSync = true
	return svc
}

func (svc *service) findPlayer(ctx context.Context, id string) (player.Player, error) {
	plr, err := svc.playerSvc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == player.ErrNotFound {
			return player.Player{}, core.NewFieldError("player_id", "player not found")
		}
		return player.Player{}, errors.Wrap(err, "finding player")
	}
	return plr, nil
}

// Subscriptions

func (svc *service) CreateSubscription(ctx context.Context, ns NewSubscription) (Subscription, error) {
	if _, err := svc.findPlayer(ctx, ns.PlayerID); err != nil {
		return Subscription{}, err
	}
	now := core.Now()
	s := Subscription{
		ID:              core.NewID(),
		PlayerID:        ns.PlayerID,
		PlanName:        ns.PlanName,
		Amount:          ns.Amount,
		Currency:        ns.Currency,
		Interval:        ns.Interval,
		StartDate:       ns.StartDate,
		NextBillingDate: ns.StartDate,
		Status:          SubscriptionActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return svc.repo.CreateSubscription(ctx, s)
}

func (svc *service) QuerySubscriptions(ctx context.Context, filter *SubscriptionFilter) ([]Subscription, error) {
	return svc.repo.QuerySubscriptions(ctx, filter)
}

func (svc *service) GetSubscription(ctx context.Context, id string) (Subscription, error) {
	if !core.IsValidID(id) {
		return Subscription{}, ErrSubscriptionNotFound
	}
	return svc.repo.GetSubscription(ctx, id)
}

func (svc *service) UpdateSubscription(ctx context.Context, s Subscription, us UpdateSubscription) (Subscription, error) {
	if us.PlanName != nil && core.CleanString(*us.PlanName) != "" {
		s.PlanName = core.CleanString(*us.PlanName)
	}
	if us.Amount != nil {
		s.Amount = *us.Amount
	}
	if us.Interval != nil && *us.Interval != "" {
		s.Interval = *us.Interval
	}
	if us.Status != nil && *us.Status != "" {
		s.Status = *us.Status
	}
	if us.NextBillingDate != nil && !us.NextBillingDate.IsZero() {
		if us.NextBillingDate.Before(s.StartDate) {
			return Subscription{}, core.NewFieldError("next_billing_date", "next billing date cannot precede the start date")
		}
		s.NextBillingDate = *us.NextBillingDate
	}
	s.UpdatedAt = core.Now()
	return svc.repo.UpdateSubscription(ctx, s)
}

func (svc *service) DeleteSubscription(ctx context.Context, id string) error {
	return svc.repo.DeleteSubscription(ctx, id)
}

// Invoices

// newInvoice numbers and stores inv within tx.
func (svc *service) newInvoice(ctx context.Context, tx core.DBExecutor, inv Invoice) (Invoice, error) {
	seq, err := svc.repo.NextSequence(ctx, InvoicePrefix, inv.IssueDate.Year(), tx)
	if err != nil {
		return Invoice{}, errors.Wrap(err, "numbering invoice")
	}
	now := core.Now()
	inv.ID = core.NewID()
	inv.Number = FormatNumber(InvoicePrefix, inv.IssueDate.Year(), seq)
	inv.AmountPaid = decimal.Zero
	inv.Status = InvoicePending
	inv.CreatedAt = now
	inv.UpdatedAt = now
	return svc.repo.CreateInvoice(ctx, inv, tx)
}

func defaultDueDate(issued core.Date) core.Date {
	return issued.AddDate(0, 0, core.Conf.Billing.InvoiceDueDays)
}

func (svc *service) CreateInvoice(ctx context.Context, ni NewInvoice) (Invoice, error) {
	plr, err := svc.findPlayer(ctx, ni.PlayerID)
	if err != nil {
		return Invoice{}, err
	}
	issued := core.DateOf(core.Now())
	inv := Invoice{
		PlayerID:    ni.PlayerID,
		Description: ni.Description,
		Amount:      ni.Amount,
		Currency:    ni.Currency,
		IssueDate:   issued,
		DueDate:     ni.DueDate,
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = defaultDueDate(issued)
	}
	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		inv, err = svc.newInvoice(ctx, tx, inv)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	svc.notify(svc.invoiceMessages(ctx, issuedTemplate, map[string]player.Player{plr.ID: plr}, inv)...)
	return inv, nil
}

func (svc *service) QueryInvoices(ctx context.Context, filter *InvoiceFilter, orderings []core.DBOrdering) ([]Invoice, error) {
	return svc.repo.QueryInvoices(ctx, filter, orderings)
}

func (svc *service) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	if !core.IsValidID(id) {
		return Invoice{}, ErrInvoiceNotFound
	}
	return svc.repo.GetInvoice(ctx, id)
}

func (svc *service) CancelInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	if inv.IsClosed() {
		return Invoice{}, core.NewValidationError(ErrInvoiceClosed)
	}
	if inv.AmountPaid.IsPositive() {
		return Invoice{}, core.NewValidationError(ErrInvoiceHasPayments)
	}
	inv.Status = InvoiceCancelled
	inv.UpdatedAt = core.Now()
	return svc.repo.UpdateInvoice(ctx, inv)
}

// invoicePeriod creates the invoice of one subscription period and moves the subscription to the next one.
// It returns a zero Invoice when the period was already invoiced.
func (svc *service) invoicePeriod(ctx context.Context, s Subscription, issued core.Date) (Invoice, error) {
	period := s.NextBillingDate
	next := NextBillingDate(s, period)

	var inv Invoice
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		exists, err := svc.repo.InvoiceExists(ctx, s.ID, period, tx)
		if err != nil {
			return errors.Wrap(err, "checking existing invoice")
		}
		if !exists {
			inv, err = svc.newInvoice(ctx, tx, Invoice{
				PlayerID:       s.PlayerID,
				SubscriptionID: null.StringFrom(s.ID),
				PeriodStart:    period,
				Description:    periodDescription(s, period),
				Amount:         s.Amount,
				Currency:       s.Currency,
				IssueDate:      issued,
				DueDate:        defaultDueDate(issued),
			})
			if err != nil {
				return err
			}
		}
		ok, err := svc.repo.AdvanceSubscription(ctx, s.ID, period, next, tx)
		if err != nil {
			return errors.Wrap(err, "advancing subscription")
		}
		if !ok {
			return errConcurrentUpdate
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (svc *service) GenerateInvoices(ctx context.Context, now time.Time) (GenerationReport, error) {
	var report GenerationReport
	day := core.DateOf(now.UTC())

	subs, err := svc.repo.DueSubscriptions(ctx, day)
	if err != nil {
		return report, errors.Wrap(err, "querying due subscriptions")
	}

	players := make(map[string]player.Player)
	for _, s := range subs {
		for i := 0; i < maxCatchUpPeriods && s.IsDue(day); i++ {
			inv, err := svc.invoicePeriod(ctx, s, day)
			if err != nil {
				if cause := errors.Cause(err); cause == errConcurrentUpdate || cause == ErrDuplicateInvoice {
					report.Skipped++
				} else {
					report.Failed++
					svc.logger.Error(fmt.Sprintf("invoicing subscription %s for %s: %v", s.ID, s.NextBillingDate, err), err)
				}
				break
			}
			if inv.ID == "" {
				report.Skipped++
			} else {
				report.Generated = append(report.Generated, inv)
			}
			s.NextBillingDate = NextBillingDate(s, s.NextBillingDate)
		}
	}

	var messages []*core.EmailMessage
	for _, inv := range report.Generated {
		if _, ok := players[inv.PlayerID]; !ok {
			plr, err := svc.playerSvc.GetByID(ctx, inv.PlayerID)
			if err != nil {
				svc.logger.Warn(fmt.Sprintf("loading player %s for invoice %s: %v", inv.PlayerID, inv.Number, err))
				continue
			}
			players[plr.ID] = plr
		}
		messages = append(messages, svc.invoiceMessages(ctx, issuedTemplate, players, inv)...)
	}
	svc.notify(messages...)

	svc.logger.Info(fmt.Sprintf("invoice generation for %s: %d generated, %d skipped, %d failed",
		day, len(report.Generated), report.Skipped, report.Failed))
	return report, nil
}

func (svc *service) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	n, err := svc.repo.MarkOverdue(ctx, core.DateOf(now.UTC()), core.Now())
	if err != nil {
		return 0, errors.Wrap(err, "marking overdue invoices")
	}
	return n, nil
}

// reminderDue reports whether a reminder for inv may be sent at now.
func reminderDue(inv Invoice, now time.Time) bool {
	if inv.Status != InvoiceOverdue {
		return false
	}
	return !inv.LastReminderAt.Valid || now.Sub(inv.LastReminderAt.Time) >= core.Conf.Billing.ReminderInterval
}

func (svc *service) SendReminders(ctx context.Context, now time.Time) (int, error) {
	invoices, err := svc.repo.QueryInvoices(ctx, &InvoiceFilter{Statuses: []string{InvoiceOverdue}}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying overdue invoices")
	}

	players := make(map[string]player.Player)
	var messages []*core.EmailMessage
	for _, inv := range invoices {
		if !reminderDue(inv, now) {
			continue
		}
		if _, ok := players[inv.PlayerID]; !ok {
			plr, err := svc.playerSvc.GetByID(ctx, inv.PlayerID)
			if err != nil {
				svc.logger.Warn(fmt.Sprintf("loading player %s for invoice %s: %v", inv.PlayerID, inv.Number, err))
				continue
			}
			players[plr.ID] = plr
		}
		msgs := svc.invoiceMessages(ctx, reminderTemplate, players, inv)
		if len(msgs) == 0 {
			continue
		}
		inv.LastReminderAt = null.TimeFrom(now.UTC().Truncate(time.Second))
		inv.UpdatedAt = core.Now()
		if _, err := svc.repo.UpdateInvoice(ctx, inv); err != nil {
			svc.logger.Error(fmt.Sprintf("saving reminder date of invoice %s: %v", inv.Number, err), err)
			continue
		}
		messages = append(messages, msgs...)
	}
	svc.notify(messages...)
	return len(messages), nil
}

// Payments

func (svc *service) RecordPayment(ctx context.Context, inv Invoice, np NewPayment, recordedBy user.User) (Payment, Invoice, error) {
	paidAt := core.Now()
	if np.PaidAt != nil && !np.PaidAt.IsZero() {
		paidAt = np.PaidAt.UTC().Truncate(time.Second)
	}

	var pmt Payment
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		cur, err := svc.repo.GetInvoice(ctx, inv.ID, tx)
		if err != nil {
			return err
		}
		if cur.IsClosed() {
			return core.NewValidationError(ErrInvoiceClosed)
		}
		if np.Amount.GreaterThan(cur.Balance()) {
			return core.NewValidationError(ErrOverpayment, core.FieldError{
				Field: "amount",
				Error: fmt.Sprintf("%s (balance: %s %s)", ErrOverpayment, cur.Balance().StringFixed(2), cur.Currency),
			})
		}

		seq, err := svc.repo.NextSequence(ctx, PaymentPrefix, paidAt.Year(), tx)
		if err != nil {
			return errors.Wrap(err, "numbering payment")
		}
		pmt, err = svc.repo.CreatePayment(ctx, Payment{
			ID:         core.NewID(),
			Number:     FormatNumber(PaymentPrefix, paidAt.Year(), seq),
			InvoiceID:  cur.ID,
			Amount:     np.Amount,
			Method:     np.Method,
			PaidAt:     paidAt,
			Reference:  np.Reference,
			RecordedBy: null.NewString(recordedBy.ID, recordedBy.ID != ""),
			CreatedAt:  core.Now(),
		}, tx)
		if err != nil {
			return errors.Wrap(err, "saving payment")
		}

		prevPaid := cur.AmountPaid
		cur.AmountPaid = prevPaid.Add(np.Amount)
		cur.Status = cur.statusAfterPayment(cur.AmountPaid)
		cur.UpdatedAt = core.Now()
		ok, err := svc.repo.ApplyPayment(ctx, cur, prevPaid, tx)
		if err != nil {
			return errors.Wrap(err, "updating invoice")
		}
		if !ok {
			return errConcurrentUpdate
		}
		inv = cur
		return nil
	})
	if err != nil {
		return Payment{}, Invoice{}, err
	}
	return pmt, inv, nil
}

func (svc *service) QueryPayments(ctx context.Context, filter *PaymentFilter) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, filter)
}

func (svc *service) Summary(ctx context.Context, playerIDs []string) (Summary, error) {
	sum, err := svc.repo.Summary(ctx, playerIDs)
	if err != nil {
		return Summary{}, errors.Wrap(err, "summarizing invoices")
	}
	sum.Currency = core.Conf.Billing.Currency
	sum.Outstanding = sum.Billed.Sub(sum.Collected)
	return sum, nil
}

// Notifications

// email templates
var (
	issuedTemplate   = "invoice_issued"
	reminderTemplate = "invoice_reminder"
)

type invoiceMailData struct {
	ParentName string
	PlayerName string
	InvoiceID  string
	Number     string
	Amount     string
	Balance    string
	Currency   string
	DueDate    string
}

// invoiceMessages builds and renders the email about inv for the parent of its player, if the player has an active parent.
// Nothing is returned when the email cannot be rendered.
func (svc *service) invoiceMessages(ctx context.Context, tmpl string, players map[string]player.Player, inv Invoice) []*core.EmailMessage {
	plr, ok := players[inv.PlayerID]
	if !ok || !plr.ParentID.Valid {
		return nil
	}
	parent, err := svc.usrSvc.GetByID(ctx, plr.ParentID.String)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("loading parent of player %s: %v", plr.ID, err))
		return nil
	}
	if !parent.IsActive || parent.Email == "" {
		return nil
	}

	subject := fmt.Sprintf("Invoice %s", inv.Number)
	if tmpl == reminderTemplate {
		subject = fmt.Sprintf("Reminder: invoice %s is overdue", inv.Number)
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: parent.Name, Address: parent.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: invoiceMailData{
			ParentName: parent.Name,
			PlayerName: plr.FullName(),
			InvoiceID:  inv.ID,
			Number:     inv.Number,
			Amount:     inv.Amount.StringFixed(2),
			Balance:    inv.Balance().StringFixed(2),
			Currency:   inv.Currency,
			DueDate:    inv.DueDate.String(),
		},
	}
	if err := msg.Render(); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering %s email for invoice %s: %v", tmpl, inv.Number, err), err)
		return nil
	}
	return []*core.EmailMessage{msg}
}

func (svc *service) notify(messages ...*core.EmailMessage) {
	if len(messages) == 0 {
		return
	}
	if svc.sendSync {
		svc.mailSvc.SendMessages(messages...)
	} else {
		go svc.mailSvc.SendMessages(messages...)
	}
}
