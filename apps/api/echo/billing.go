package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/access"
	"github.com/touchline/academy/core/billing"
	"github.com/touchline/academy/core/user"
)

var (
	errSubscriptionNotFoundInCtx = errors.New("subscription object not found in echo.Context")
	errInvoiceNotFoundInCtx      = errors.New("invoice object not found in echo.Context")
)

type billingApi struct {
	svc      billing.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerBillingAPI(
	g *echo.Group,
	auth []echo.MiddlewareFunc,
	svc billing.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := billingApi{svc: svc, usrSvc: usrSvc, validate: validate}

	sg := g.Group("/subscriptions", auth...)
	sg.GET("", api.querySubscriptions)
	sg.POST("", api.createSubscription, adminMiddleware())
	sdg := sg.Group("/:id", subscriptionObjectMiddleware(svc))
	sdg.GET("", api.retrieveSubscription)
	sdg.PUT("", api.updateSubscription, adminMiddleware())
	sdg.DELETE("", api.destroySubscription, adminMiddleware())

	ig := g.Group("/invoices", auth...)
	ig.GET("", api.queryInvoices)
	ig.POST("", api.createInvoice, adminMiddleware())
	idg := ig.Group("/:id", invoiceObjectMiddleware(svc))
	idg.GET("", api.retrieveInvoice)
	idg.POST("/cancel", api.cancelInvoice, adminMiddleware())
	idg.GET("/payments", api.invoicePayments)
	idg.POST("/payments", api.recordPayment, adminMiddleware())

	pg := g.Group("/payments", auth...)
	pg.GET("", api.queryPayments)

	bg := g.Group("/billing", auth...)
	bg.GET("/summary", api.summary)
	bg.POST("/generate", api.generateInvoices, adminMiddleware())
	bg.POST("/overdue", api.markOverdue, adminMiddleware())
	bg.POST("/reminders", api.sendReminders, adminMiddleware())
}

type (
	PaymentResponse struct {
		Payment billing.Payment `json:"payment"`
		Invoice billing.Invoice `json:"invoice"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}
)

// canSeeBilling reports whether the billing records of playerID are visible.
func canSeeBilling(scope access.Scope, playerID string) bool {
	return scope.All || core.StringIn(playerID, scope.BillingFilter()...)
}

// Subscriptions

func (api *billingApi) querySubscriptions(ctx echo.Context) error {
	filter := &billing.SubscriptionFilter{
		PlayerIDs: scopedIDs(queryList(ctx, "player"), getContextScope(ctx).BillingFilter()),
		Status:    queryString(ctx, "status", true /* lower */),
	}
	subs, err := api.svc.QuerySubscriptions(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying subscriptions")
	}
	if subs == nil {
		subs = []billing.Subscription{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *billingApi) createSubscription(ctx echo.Context) error {
	var data billing.NewSubscription
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubscription")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.CreateSubscription(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subscription")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *billingApi) retrieveSubscription(ctx echo.Context) error {
	s, ok := ctx.Get("object").(billing.Subscription)
	if !ok {
		return errors.Wrap(errSubscriptionNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *billingApi) updateSubscription(ctx echo.Context) error {
	s, ok := ctx.Get("object").(billing.Subscription)
	if !ok {
		return errors.Wrap(errSubscriptionNotFoundInCtx, "retrieving object from context")
	}

	var data billing.UpdateSubscription
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubscription")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.UpdateSubscription(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "updating subscription")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *billingApi) destroySubscription(ctx echo.Context) error {
	s, ok := ctx.Get("object").(billing.Subscription)
	if !ok {
		return errors.Wrap(errSubscriptionNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.DeleteSubscription(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting subscription")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Invoices

func (api *billingApi) queryInvoices(ctx echo.Context) error {
	filter := &billing.InvoiceFilter{
		PlayerIDs:      scopedIDs(queryList(ctx, "player"), getContextScope(ctx).BillingFilter()),
		SubscriptionID: queryString(ctx, "subscription"),
		Statuses:       queryList(ctx, "status"),
		Search:         queryString(ctx, "search"),
		IssuedFrom:     queryDate(ctx, "issued_from"),
		IssuedTo:       queryDate(ctx, "issued_to"),
		Limit:          queryInt(ctx, "limit"),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	invoices, err := api.svc.QueryInvoices(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying invoices")
	}
	if invoices == nil {
		invoices = []billing.Invoice{}
	}
	return ctx.JSON(http.StatusOK, invoices)
}

func (api *billingApi) createInvoice(ctx echo.Context) error {
	var data billing.NewInvoice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvoice")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	inv, err := api.svc.CreateInvoice(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating invoice")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *billingApi) retrieveInvoice(ctx echo.Context) error {
	inv, ok := ctx.Get("object").(billing.Invoice)
	if !ok {
		return errors.Wrap(errInvoiceNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *billingApi) cancelInvoice(ctx echo.Context) error {
	inv, ok := ctx.Get("object").(billing.Invoice)
	if !ok {
		return errors.Wrap(errInvoiceNotFoundInCtx, "retrieving object from context")
	}
	inv, err := api.svc.CancelInvoice(ctx.Request().Context(), inv)
	if err != nil {
		return errors.Wrap(err, "cancelling invoice")
	}
	return ctx.JSON(http.StatusOK, inv)
}

// Payments

func (api *billingApi) invoicePayments(ctx echo.Context) error {
	inv, ok := ctx.Get("object").(billing.Invoice)
	if !ok {
		return errors.Wrap(errInvoiceNotFoundInCtx, "retrieving object from context")
	}
	payments, err := api.svc.QueryPayments(ctx.Request().Context(), &billing.PaymentFilter{InvoiceID: inv.ID})
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []billing.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *billingApi) recordPayment(ctx echo.Context) error {
	inv, ok := ctx.Get("object").(billing.Invoice)
	if !ok {
		return errors.Wrap(errInvoiceNotFoundInCtx, "retrieving object from context")
	}

	var data billing.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	pmt, inv, err := api.svc.RecordPayment(ctx.Request().Context(), inv, data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, PaymentResponse{Payment: pmt, Invoice: inv})
}

func (api *billingApi) queryPayments(ctx echo.Context) error {
	filter := &billing.PaymentFilter{
		InvoiceID: queryString(ctx, "invoice"),
		PlayerIDs: scopedIDs(queryList(ctx, "player"), getContextScope(ctx).BillingFilter()),
	}
	payments, err := api.svc.QueryPayments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []billing.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

// Billing runs

func (api *billingApi) summary(ctx echo.Context) error {
	playerIDs := scopedIDs(queryList(ctx, "player"), getContextScope(ctx).BillingFilter())
	sum, err := api.svc.Summary(ctx.Request().Context(), playerIDs)
	if err != nil {
		return errors.Wrap(err, "summarizing billing")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *billingApi) generateInvoices(ctx echo.Context) error {
	report, err := api.svc.GenerateInvoices(ctx.Request().Context(), core.Now())
	if err != nil {
		return errors.Wrap(err, "generating invoices")
	}
	if report.Generated == nil {
		report.Generated = []billing.Invoice{}
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *billingApi) markOverdue(ctx echo.Context) error {
	n, err := api.svc.MarkOverdue(ctx.Request().Context(), core.Now())
	if err != nil {
		return errors.Wrap(err, "marking overdue invoices")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *billingApi) sendReminders(ctx echo.Context) error {
	n, err := api.svc.SendReminders(ctx.Request().Context(), core.Now())
	if err != nil {
		return errors.Wrap(err, "sending reminders")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

// subscriptionObjectMiddleware loads the subscription of the `id` path param, hiding the ones out of scope.
func subscriptionObjectMiddleware(svc billing.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			s, err := svc.GetSubscription(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == billing.ErrSubscriptionNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding subscription by ID")
			}
			if !canSeeBilling(getContextScope(ctx), s.PlayerID) {
				return errHttpNotFound
			}
			ctx.Set("object", s)
			return next(ctx)
		}
	}
}

// invoiceObjectMiddleware loads the invoice of the `id` path param, hiding the ones out of scope.
func invoiceObjectMiddleware(svc billing.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			inv, err := svc.GetInvoice(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == billing.ErrInvoiceNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding invoice by ID")
			}
			if !canSeeBilling(getContextScope(ctx), inv.PlayerID) {
				return errHttpNotFound
			}
			ctx.Set("object", inv)
			return next(ctx)
		}
	}
}
