package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/middleware"
	"github.com/dukerupert/verdandi/internal/service"
)

// validate is shared by all handlers; validator.Validate is safe for
// concurrent use.
var validate = validator.New()

// bindJSON decodes and validates a JSON request body into dst.
func bindJSON(r *http.Request, dst interface{}) error {
	body := io.LimitReader(r.Body, 1<<20)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return domain.Invalid("handler.bind", "invalid JSON request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.Errorf(domain.EINVALID, "handler.bind",
				"invalid value for field %s", verrs[0].Field())
		}
		return domain.Invalid("handler.bind", "invalid request")
	}
	return nil
}

// PaymentHandler exposes payment verification over HTTP.
type PaymentHandler struct {
	verifier *service.VerificationService
	stock    *service.StockService
	orders   *service.OrderService
	logger   *slog.Logger
}

// NewPaymentHandler creates a payment handler.
func NewPaymentHandler(
	verifier *service.VerificationService,
	stock *service.StockService,
	orders *service.OrderService,
	logger *slog.Logger,
) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{
		verifier: verifier,
		stock:    stock,
		orders:   orders,
		logger:   logger,
	}
}

// CompletePaymentRequest is the body of POST /api/payments/complete.
type CompletePaymentRequest struct {
	OrderID          int64           `json:"order_id" validate:"required,gt=0"`
	PaymentReference string          `json:"payment_reference" validate:"required"`
	Amount           decimal.Decimal `json:"amount"`
}

// CompletePaymentResponse reports a verified payment.
type CompletePaymentResponse struct {
	OrderID  int64  `json:"order_id"`
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
}

// CompletePayment handles POST /api/payments/complete. It verifies the
// gateway charge against the expected amount, reconciles the order and
// payment records, and decrements stock for the completed order.
//
// Response codes:
// - 200 OK: Payment verified, order completed, stock decremented
// - 402 Payment Required: Verification failed (status or amount)
// - 409 Conflict: Stock could not cover the order
// - 500 Internal Server Error: Verified charge could not be recorded
func (h *PaymentHandler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context(), h.logger)

	var req CompletePaymentRequest
	if err := bindJSON(r, &req); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if !req.Amount.IsPositive() {
		ErrorResponse(w, r, domain.Invalid("payment.complete", "amount must be positive"))
		return
	}

	verified, err := h.verifier.VerifyPayment(r.Context(), req.PaymentReference, req.OrderID, req.Amount)
	if err != nil {
		// The charge is real but could not be recorded; it is queued for
		// retry and the client must not treat the payment as rejected.
		ErrorResponse(w, r, err)
		return
	}
	if !verified {
		ErrorResponse(w, r, domain.WrapError(domain.ErrPaymentMismatch,
			domain.EPAYMENT, "payment.complete", "payment verification failed"))
		return
	}

	if err := h.stock.DecreaseStockForOrder(r.Context(), req.OrderID); err != nil {
		logger.Error("stock decrement failed after verification",
			"order_id", req.OrderID, "error", err)
		ErrorResponse(w, r, err)
		return
	}

	logger.Info("payment verified",
		"order_id", req.OrderID,
		"payment_reference", req.PaymentReference,
	)

	respondJSON(w, http.StatusOK, CompletePaymentResponse{
		OrderID:  req.OrderID,
		Verified: true,
		Status:   string(domain.OrderStatusCompleted),
	})
}
