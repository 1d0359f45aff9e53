package routes

import (
	"fmt"
	"net/http"

	"scatch/auth"
	"scatch/cart"
	"scatch/feed"
	"scatch/middleware"
	"scatch/payments"
	"scatch/products"
	"scatch/ratelim"

	"github.com/julienschmidt/httprouter"
)

// Deps carries the handlers the router exposes.
type Deps struct {
	Auth        *middleware.Auth
	Accounts    *auth.Handler
	Products    *products.Handler
	Cart        *cart.Handler
	Payments    *payments.Handler
	Idempotency payments.IdempotencyStore
	Hub         *feed.Hub
	Origins     []string
	RateLimiter *ratelim.RateLimiter
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func RoutesWrapper(router *httprouter.Router, d Deps) {
	router.GET("/health", Index)

	AddAuthRoutes(router, d)
	AddProductRoutes(router, d)
	AddCartRoutes(router, d)
	AddPayRoutes(router, d)
	AddOrderRoutes(router, d)
	AddFeedRoutes(router, d)
}
