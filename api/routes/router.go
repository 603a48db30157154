package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/farmgatehq/farmgate-backend/api/controllers"
	deliverycontrollers "github.com/farmgatehq/farmgate-backend/api/controllers/deliveries"
	ordercontrollers "github.com/farmgatehq/farmgate-backend/api/controllers/orders"
	paymentcontrollers "github.com/farmgatehq/farmgate-backend/api/controllers/payments"
	webhookcontrollers "github.com/farmgatehq/farmgate-backend/api/controllers/webhooks"
	"github.com/farmgatehq/farmgate-backend/api/middleware"
	"github.com/farmgatehq/farmgate-backend/internal/deliveries"
	"github.com/farmgatehq/farmgate-backend/internal/orders"
	"github.com/farmgatehq/farmgate-backend/internal/payments"
	"github.com/farmgatehq/farmgate-backend/pkg/config"
	"github.com/farmgatehq/farmgate-backend/pkg/db"
	"github.com/farmgatehq/farmgate-backend/pkg/logger"
	"github.com/farmgatehq/farmgate-backend/pkg/paystack"
	"github.com/farmgatehq/farmgate-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
	deliveriesSvc deliveries.Service,
	paystackClient *paystack.Client,
	webhookSvc webhookcontrollers.PaystackWebhookService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// The gateway authenticates with its signature, not actor headers.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paystack", webhookcontrollers.PaystackWebhook(webhookSvc, paystackClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(ordersSvc, logg))
			r.Get("/mine", ordercontrollers.ListMine(ordersSvc, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersSvc, logg))
			r.Post("/{orderId}/transition", ordercontrollers.Transition(ordersSvc, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersSvc, logg))
			r.Post("/{orderId}/issues", ordercontrollers.ReportIssue(ordersSvc, logg))

			r.Route("/{orderId}/delivery", func(r chi.Router) {
				r.Post("/", deliverycontrollers.Assign(deliveriesSvc, logg))
				r.Get("/", deliverycontrollers.Detail(deliveriesSvc, logg))
				r.Patch("/", deliverycontrollers.UpdateStatus(deliveriesSvc, logg))
				r.Post("/rating", deliverycontrollers.Rate(deliveriesSvc, logg))
			})
		})

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", deliverycontrollers.ListProviders(deliveriesSvc, logg))
			r.Post("/", deliverycontrollers.RegisterProvider(deliveriesSvc, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/initialize", paymentcontrollers.Initialize(paymentsSvc, logg))
			r.Get("/verify/{reference}", paymentcontrollers.Verify(paymentsSvc, logg))
			r.Post("/{transactionId}/refund", paymentcontrollers.Refund(paymentsSvc, logg))
			r.Post("/accounts", paymentcontrollers.RegisterFarmerAccount(paymentsSvc, logg))
			r.Patch("/accounts/{farmerId}/verification", paymentcontrollers.SetFarmerAccountVerification(paymentsSvc, logg))
		})
	})

	return r
}
