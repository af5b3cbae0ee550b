// Package shopapi implements the marketplace's JSON API under /api/v1.
package shopapi

import "sync"

var initOnce sync.Once

// Init registers every route with the webserver; it must run before the
// server is built.
func Init() {
	initOnce.Do(func() {
		registerAuthRoutes()
		registerProfileRoutes()
		registerProductRoutes()
		registerWishlistRoutes()
		registerCheckoutRoutes()
		registerOrderRoutes()
		registerCurrencyRoutes()
	})
}
