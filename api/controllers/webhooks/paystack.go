package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/farmgatehq/farmgate-backend/api/responses"
	paystackwebhook "github.com/farmgatehq/farmgate-backend/internal/webhooks/paystack"
	pkgerrors "github.com/farmgatehq/farmgate-backend/pkg/errors"
	"github.com/farmgatehq/farmgate-backend/pkg/logger"
)

const paystackSignatureHeader = "X-Paystack-Signature"

type PaystackWebhookService interface {
	HandleEvent(ctx context.Context, payload json.RawMessage, event *paystackwebhook.Event) error
}

type signatureVerifier interface {
	ValidSignature(payload []byte, header string) bool
}

// PaystackWebhook receives settlement gateway events. Only a bad signature is
// rejected outright; everything else is acknowledged so the gateway does not
// retry forever.
func PaystackWebhook(svc PaystackWebhookService, verifier signatureVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if !verifier.ValidSignature(payload, r.Header.Get(paystackSignatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid gateway signature"))
			return
		}

		// The signature proved the sender; an undecodable body is acknowledged
		// so the gateway does not redeliver it forever.
		event, err := paystackwebhook.ParseEvent(payload)
		if err != nil {
			if logg != nil {
				logg.Warn(ctx, "undecodable gateway payload acknowledged")
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, json.RawMessage(payload), event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
