package routes

import (
	"scatch/feed"

	"github.com/julienschmidt/httprouter"
)

func AddAuthRoutes(router *httprouter.Router, d Deps) {
	rl := d.RateLimiter

	router.POST("/api/users/register", rl.Limit(d.Accounts.RegisterUser))
	router.POST("/api/users/login", rl.Limit(d.Accounts.LoginUser))
	router.POST("/api/users/logout", d.Accounts.Logout)

	router.POST("/api/owners/create", rl.Limit(d.Accounts.CreateOwner))
	router.POST("/api/owners/login", rl.Limit(d.Accounts.LoginOwner))
	router.POST("/api/owners/logout", d.Accounts.Logout)

	router.GET("/api/auth/check", d.Accounts.Check)
}

func AddProductRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/products", d.Products.GetProducts)
	router.GET("/api/products/:id/image", d.Products.GetImage)
	router.POST("/api/products", d.Auth.AuthenticateOwner(d.Products.CreateProduct))
	router.PUT("/api/products/:id", d.Auth.AuthenticateOwner(d.Products.UpdateProduct))
	router.DELETE("/api/products/:id", d.Auth.AuthenticateOwner(d.Products.DeleteProduct))

	router.GET("/api/admin/products", d.Auth.AuthenticateOwner(d.Products.AdminProducts))
}

func AddCartRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/cart", d.Auth.Authenticate(d.Cart.GetCart))
	router.POST("/api/cart/:productid", d.Auth.Authenticate(d.Cart.AddToCart))
	router.POST("/api/cart/:productid/update", d.Auth.Authenticate(d.Cart.UpdateCart))
	router.DELETE("/api/cart/:productid", d.Auth.Authenticate(d.Cart.RemoveFromCart))
}

func AddFeedRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/owners/feed", d.Auth.AuthenticateOwner(feed.Handler(d.Hub, d.Origins)))
}
