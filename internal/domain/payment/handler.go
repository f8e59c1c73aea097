package payment

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coopera/coopera-api/internal/middleware"
	"github.com/coopera/coopera-api/internal/pkg/asaas"
	"github.com/coopera/coopera-api/internal/pkg/errorhandler"
	"github.com/coopera/coopera-api/internal/pkg/response"
	"github.com/coopera/coopera-api/internal/pkg/stripe"
)

// maxWebhookBody bounds webhook request bodies.
const maxWebhookBody = 1 << 20

// Handler handles payment webhooks and payment queries
type Handler struct {
	service             *Service
	asaasWebhookToken   string
	stripeWebhookSecret string
}

// NewHandler creates payment handler
func NewHandler(service *Service, asaasWebhookToken, stripeWebhookSecret string) *Handler {
	return &Handler{
		service:             service,
		asaasWebhookToken:   asaasWebhookToken,
		stripeWebhookSecret: stripeWebhookSecret,
	}
}

// AsaasWebhook handles POST /webhooks/asaas
func (h *Handler) AsaasWebhook(w http.ResponseWriter, r *http.Request) {
	if !asaas.VerifyAccessToken(r.Header.Get("asaas-access-token"), h.asaasWebhookToken) {
		response.Unauthorized(w, "Invalid webhook token")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Unreadable body")
		return
	}

	ev, err := asaas.ParseWebhook(body)
	if err != nil {
		log.Warn().Err(err).Msg("malformed asaas webhook")
		response.BadRequest(w, "Malformed webhook payload")
		return
	}

	if !ev.IsSettled() {
		// Lifecycle events we do not act on still get a 200 so Asaas
		// stops redelivering them.
		response.OK(w, map[string]string{"status": "ignored"})
		return
	}

	ref, err := asaas.ParseReference(ev.Payment.ExternalReference)
	if err != nil {
		log.Warn().Err(err).Str("payment_id", ev.Payment.ID).Msg("asaas webhook without usable reference")
		response.BadRequest(w, "Missing payment reference")
		return
	}

	userID, err := uuid.Parse(ref.UserID)
	if err != nil {
		response.BadRequest(w, "Invalid user reference")
		return
	}

	amountCents, err := asaas.ValueToCents(ev.Payment.Value.String())
	if err != nil {
		response.BadRequest(w, "Invalid payment amount")
		return
	}

	confirmed := &ConfirmedEvent{
		Provider:     ProviderAsaas,
		ExternalID:   ev.Payment.ID,
		UserID:       userID,
		PlanID:       parseOptionalUUID(ref.PlanID),
		GroupID:      parseOptionalUUID(ref.GroupID),
		AmountCents:  amountCents,
		ReferralCode: ref.ReferralCode,
	}

	if err := h.service.ProcessConfirmed(r.Context(), confirmed); err != nil {
		// 500 so Asaas redelivers; every processing step is idempotent.
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError,
			"WEBHOOK_PROCESSING_FAILED", "Webhook processing failed", err)
		return
	}

	response.OK(w, map[string]string{"status": "processed"})
}

// StripeWebhook handles POST /webhooks/stripe
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Unreadable body")
		return
	}

	if err := stripe.VerifySignature(body, r.Header.Get("Stripe-Signature"), h.stripeWebhookSecret, time.Now()); err != nil {
		log.Warn().Err(err).Msg("stripe webhook signature rejected")
		response.Unauthorized(w, "Invalid signature")
		return
	}

	ev, err := stripe.ParseEvent(body)
	if err != nil {
		response.BadRequest(w, "Malformed event payload")
		return
	}

	if ev.Type != stripe.EventCheckoutCompleted || !ev.Data.Object.IsPaid() {
		response.OK(w, map[string]string{"status": "ignored"})
		return
	}

	session := ev.Data.Object
	userID, err := uuid.Parse(session.Metadata["user_id"])
	if err != nil {
		response.BadRequest(w, "Invalid user reference")
		return
	}

	externalID := session.PaymentIntent
	if externalID == "" {
		externalID = session.ID
	}

	confirmed := &ConfirmedEvent{
		Provider:     ProviderStripe,
		ExternalID:   externalID,
		UserID:       userID,
		PlanID:       parseOptionalUUID(session.Metadata["plan_id"]),
		GroupID:      parseOptionalUUID(session.Metadata["group_id"]),
		AmountCents:  session.AmountTotal,
		ReferralCode: session.Metadata["referral_code"],
	}

	if err := h.service.ProcessConfirmed(r.Context(), confirmed); err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError,
			"WEBHOOK_PROCESSING_FAILED", "Webhook processing failed", err)
		return
	}

	response.OK(w, map[string]string{"status": "processed"})
}

// ListMine handles GET /payments
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	payments, err := h.service.ListByUser(r.Context(), userID, 20, 0)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, payments)
}

func parseOptionalUUID(raw string) uuid.NullUUID {
	if raw == "" {
		return uuid.NullUUID{}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: id, Valid: true}
}
