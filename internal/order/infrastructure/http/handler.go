package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	catalogapp "github.com/dmehra2102/cafe-order-core/internal/catalog/application"
	catalogdomain "github.com/dmehra2102/cafe-order-core/internal/catalog/domain"
	"github.com/dmehra2102/cafe-order-core/internal/order/application"
	"github.com/dmehra2102/cafe-order-core/internal/order/domain"
	paydomain "github.com/dmehra2102/cafe-order-core/internal/payment/domain"
	resdomain "github.com/dmehra2102/cafe-order-core/internal/reservation/domain"
	"github.com/dmehra2102/cafe-order-core/internal/settings"
	"github.com/dmehra2102/cafe-order-core/pkg/apperr"
	"github.com/dmehra2102/cafe-order-core/pkg/idempotency"
	"github.com/dmehra2102/cafe-order-core/pkg/metrics"
)

type Menu interface {
	Menu(ctx context.Context) ([]catalogdomain.Product, error)
	LowStock(ctx context.Context) ([]catalogdomain.Product, error)
}

type Availability interface {
	FindAvailable(ctx context.Context, start time.Time, partySize int) ([]resdomain.Table, error)
}

type Options struct {
	Menu         Menu
	Availability Availability
	Hours        settings.Hours
	Auth         *Authenticator
	Idempotency  idempotency.Claimer
}

type Handler struct {
	log     *slog.Logger
	service *application.Service
	opts    Options
	tracer  trace.Tracer
	now     func() time.Time
}

func NewHandler(log *slog.Logger, service *application.Service, opts Options) *Handler {
	return &Handler{
		log:     log,
		service: service,
		opts:    opts,
		tracer:  otel.Tracer("order-http"),
		now:     time.Now,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// customer facing
	r.Get("/menu", h.menu)
	r.Get("/reservations/availability", h.availability)
	r.Post("/orders", h.submitOrder)
	r.Get("/orders/{id}", h.getOrder)

	r.Group(func(r chi.Router) {
		r.Use(h.opts.Auth.Middleware)

		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}/bill", h.bill)
		r.Post("/orders/{id}/status", h.transition)
		r.Post("/orders/{id}/cancel", h.cancel)
		r.Post("/orders/{id}/verify-payment", h.verifyPayment)
		r.Post("/orders/{id}/items/{line}/cancel", h.cancelItem)
		r.Post("/orders/{id}/discount-code", h.applyDiscountCode)
		r.Post("/orders/{id}/manual-discount", h.applyManualDiscount)
		r.Post("/orders/{id}/quote", h.quote)

		r.Group(func(r chi.Router) {
			if h.opts.Idempotency != nil {
				r.Use(idempotency.Middleware(h.opts.Idempotency, h.log))
			}
			r.Post("/orders/{id}/payments", h.recordPayment)
			r.Post("/orders/{id}/settle", h.settleRemaining)
		})

		r.Get("/tables", h.tableBoard)
		r.Get("/tables/{number}", h.tableStatus)
		r.Get("/inventory/low-stock", h.lowStock)
	})

	return r
}

func (h *Handler) span(r *http.Request, name string) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, name)
	if id := chi.URLParam(r, "id"); id != "" {
		span.SetAttributes(attribute.String("order.id", id))
	}
	return ctx, span
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	h.writeError(w, r, err)
}

type itemReq struct {
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Size      domain.Size `json:"size"`
	AddOns    []string    `json:"add_ons"`
	Notes     string      `json:"notes"`
}

type reservationReq struct {
	Start           time.Time `json:"start"`
	PartySize       int       `json:"number_of_people"`
	TablePreference int       `json:"table_preference"`
	Phone           string    `json:"phone"`
	Email           string    `json:"email"`
}

type prepaidReq struct {
	Method      paydomain.Method `json:"method"`
	Proof       []byte           `json:"proof"`
	ProofName   string           `json:"proof_name"`
	ContentType string           `json:"content_type"`
}

type submitOrderReq struct {
	DiningType   domain.DiningType `json:"dining_type"`
	TableNumber  int               `json:"table_number"`
	CustomerName string            `json:"customer_name"`
	Notes        string            `json:"order_notes"`
	Items        []itemReq         `json:"items"`
	DiscountCode string            `json:"discount_code"`
	Reservation  *reservationReq   `json:"reservation"`
	Prepaid      *prepaidReq       `json:"prepaid"`
}

func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "SubmitOrder")
	defer span.End()

	var req submitOrderReq
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body", Kind: string(apperr.KindValidation)})
		return
	}

	// reservations are judged by their slot, everything else by now
	at := h.now()
	if req.Reservation != nil && !req.Reservation.Start.IsZero() {
		at = req.Reservation.Start
	}
	if !h.opts.Hours.IsOpen(at) {
		h.fail(w, r, span, apperr.Validation(settings.ErrClosed, h.opts.Hours.String()))
		return
	}

	in := application.SubmitRequest{
		DiningType:   req.DiningType,
		TableNumber:  req.TableNumber,
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
		DiscountCode: req.DiscountCode,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, catalogapp.Selection{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Size:      it.Size,
			AddOns:    it.AddOns,
			Notes:     it.Notes,
		})
	}
	if rr := req.Reservation; rr != nil {
		in.Reservation = &application.ReservationRequest{
			Start:           rr.Start,
			PartySize:       rr.PartySize,
			TablePreference: rr.TablePreference,
			Phone:           rr.Phone,
			Email:           rr.Email,
		}
	}
	if p := req.Prepaid; p != nil {
		in.Prepaid = &application.Prepaid{Method: p.Method, Proof: p.Proof, ProofName: p.ProofName, ContentType: p.ContentType}
	}

	o, err := h.service.Submit(ctx, in)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.String("order.status", string(o.Status)))
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "GetOrder")
	defer span.End()

	o, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "ListOrders")
	defer span.End()

	q := r.URL.Query()
	f := application.Filter{DiningType: domain.DiningType(q.Get("dining_type"))}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, domain.Status(strings.TrimSpace(s)))
		}
	}
	var err error
	if raw := q.Get("table"); raw != "" {
		if f.TableNumber, err = strconv.Atoi(raw); err != nil {
			h.fail(w, r, span, apperr.Validation(err, "table"))
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if f.Limit, err = strconv.Atoi(raw); err != nil {
			h.fail(w, r, span, apperr.Validation(err, "limit"))
			return
		}
	}

	orders, err := h.service.List(ctx, f)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) bill(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "Bill")
	defer span.End()

	b, err := h.service.Bill(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type transitionReq struct {
	Status domain.Status `json:"status"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "TransitionOrder")
	defer span.End()

	var req transitionReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, span, apperr.Validation(err, "body"))
		return
	}
	span.SetAttributes(attribute.String("order.to", string(req.Status)))
	o, err := h.service.Transition(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	h.log.Info("status set by staff", "order_id", o.ID, "status", o.Status, "staff", staffFrom(ctx))
	writeJSON(w, http.StatusOK, o)
}

type reasonReq struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "CancelOrder")
	defer span.End()

	var req reasonReq
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.fail(w, r, span, apperr.Validation(err, "body"))
		return
	}
	o, err := h.service.Cancel(ctx, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	h.log.Info("order cancelled by staff", "order_id", o.ID, "staff", staffFrom(ctx))
	writeJSON(w, http.StatusOK, o)
}

type verifyReq struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "VerifyPayment")
	defer span.End()

	var req verifyReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, span, apperr.Validation(err, "body"))
		return
	}
	o, err := h.service.VerifyPayment(ctx, chi.URLParam(r, "id"), req.Approve, req.Reason)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	h.log.Info("payment proof reviewed", "order_id", o.ID, "approved", req.Approve, "staff", staffFrom(ctx))
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) cancelItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "CancelItem")
	defer span.End()

	line, err := strconv.Atoi(chi.URLParam(r, "line"))
	if err != nil {
		h.fail(w, r, span, apperr.Validation(domain.ErrUnknownLine, chi.URLParam(r, "line")))
		return
	}
	var req reasonReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, span, apperr.Validation(err, "body"))
		return
	}
	o, err := h.service.CancelItem(ctx, chi.URLParam(r, "id"), line, req.Reason)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type discountCodeReq struct {
	Code string `json:"code"`
}

func (h *Handler) applyDiscountCode(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "ApplyDiscountCode")
	defer span.End()

	var req discountCodeReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, span, apperr.Validation(err, "body"))
		return
	}
	o, err := h.service.ApplyDiscountCode(ctx, chi.URLParam(r, "id"), req.Code)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type manualDiscountReq struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (h *Handler) applyManualDiscount(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "ApplyManualDiscount")
	defer span.End()

	var req manualDiscountReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, span, apperr.Validation(err, "body"))
		return
	}
	o, err := h.service.ApplyManualDiscount(ctx, chi.URLParam(r, "id"), req.Amount, req.Reason)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	h.log.Info("manual discount applied", "order_id", o.ID, "amount", req.Amount.StringFixed(2), "staff", staffFrom(ctx))
	writeJSON(w, http.StatusOK, o)
}

type quoteReq struct {
	Items map[int]int `json:"items"`
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "QuotePayment")
	defer span.End()

	var req quoteReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, span, apperr.Validation(err, "body"))
		return
	}
	amount, err := h.service.Quote(ctx, chi.URLParam(r, "id"), req.Items)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": amount.StringFixed(2)})
}

type paymentReq struct {
	Amount decimal.Decimal  `json:"amount"`
	Method paydomain.Method `json:"method"`
	Notes  string           `json:"notes"`
	Items  map[int]int      `json:"items"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "RecordPayment")
	defer span.End()

	var req paymentReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, span, apperr.Validation(err, "body"))
		return
	}
	res, err := h.service.RecordPayment(ctx, chi.URLParam(r, "id"), application.PaymentRequest{
		Amount: req.Amount,
		Method: req.Method,
		Notes:  req.Notes,
		Items:  req.Items,
	})
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	span.SetAttributes(attribute.Bool("order.settled", res.Settled))
	writeJSON(w, http.StatusCreated, res)
}

type settleReq struct {
	Amount decimal.Decimal  `json:"amount"`
	Method paydomain.Method `json:"method"`
	Notes  string           `json:"notes"`
}

func (h *Handler) settleRemaining(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "SettleRemaining")
	defer span.End()

	var req settleReq
	if err := decode(r, &req); err != nil {
		h.fail(w, r, span, apperr.Validation(err, "body"))
		return
	}
	res, err := h.service.SettleRemaining(ctx, chi.URLParam(r, "id"), req.Method, req.Amount, req.Notes)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) tableBoard(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "TableBoard")
	defer span.End()

	board, err := h.service.TableBoard(ctx)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *Handler) tableStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "TableStatus")
	defer span.End()

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, r, span, apperr.Validation(resdomain.ErrUnknownTable, chi.URLParam(r, "number")))
		return
	}
	st, err := h.service.TableStatus(ctx, number)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) menu(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "Menu")
	defer span.End()

	products, err := h.opts.Menu.Menu(ctx)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "LowStock")
	defer span.End()

	products, err := h.opts.Menu.LowStock(ctx)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	if products == nil {
		products = []catalogdomain.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.span(r, "ReservationAvailability")
	defer span.End()

	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		h.fail(w, r, span, apperr.Validation(fmt.Errorf("start: %w", err), q.Get("start")))
		return
	}
	party, err := strconv.Atoi(q.Get("party_size"))
	if err != nil {
		h.fail(w, r, span, apperr.Validation(resdomain.ErrInvalidPartySize, q.Get("party_size")))
		return
	}
	tables, err := h.opts.Availability.FindAvailable(ctx, start, party)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}
	if tables == nil {
		tables = []resdomain.Table{}
	}
	writeJSON(w, http.StatusOK, tables)
}
