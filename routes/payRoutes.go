package routes

import (
	"scatch/payments"

	"github.com/julienschmidt/httprouter"
)

func AddPayRoutes(router *httprouter.Router, d Deps) {
	rl := d.RateLimiter

	createOrder := d.Payments.CreateOrder
	if d.Idempotency != nil {
		createOrder = payments.Idempotency(d.Idempotency, createOrder)
	}
	router.POST("/api/payments/create-order", rl.Limit(d.Auth.Authenticate(createOrder)))
	router.POST("/api/payments/verify", rl.Limit(d.Auth.Authenticate(d.Payments.VerifyPayment)))
	router.GET("/api/payments/owner-revenue", d.Auth.AuthenticateOwner(d.Payments.OwnerRevenue))
}

func AddOrderRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/orders", d.Auth.Authenticate(d.Payments.ListOrders))
	router.GET("/api/orders/:id/receipt", d.Auth.Authenticate(d.Payments.Receipt))
}
