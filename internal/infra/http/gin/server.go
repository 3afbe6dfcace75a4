package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"staykeeper/internal/infra/config"
	"staykeeper/internal/infra/obs"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Confirm(c *gin.Context)
	Reject(c *gin.Context)
	Cancel(c *gin.Context)
	CheckIn(c *gin.Context)
	CheckOut(c *gin.Context)
	PaymentStatus(c *gin.Context)
	ListMine(c *gin.Context)
	ListHosted(c *gin.Context)
	ListListing(c *gin.Context)
	ListingStats(c *gin.Context)
	Upcoming(c *gin.Context)
}

type AvailabilityHTTP interface {
	Calendar(c *gin.Context)
	Check(c *gin.Context)
	Price(c *gin.Context)
}

type CommissionHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Pay(c *gin.Context)
	Fail(c *gin.Context)
	Transition(c *gin.Context)
	ListHosted(c *gin.Context)
	Pending(c *gin.Context)
	Earnings(c *gin.Context)
	PlatformRevenue(c *gin.Context)
	Rate(c *gin.Context)
	Preview(c *gin.Context)
}

type Handlers struct {
	Booking        BookingHTTP
	Availability   AvailabilityHTTP
	Commission     CommissionHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine without binding an address.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(obsMW.RequestID(), obsMW.Recover())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
			"Retry-After",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}
	router.Use(obsMW.AccessLog())

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Booking != nil {
		api.POST("/bookings", h.Booking.Create)
		api.GET("/bookings/:id", h.Booking.Get)
		api.POST("/bookings/:id/confirm", h.Booking.Confirm)
		api.POST("/bookings/:id/reject", h.Booking.Reject)
		api.POST("/bookings/:id/cancel", h.Booking.Cancel)
		api.POST("/bookings/:id/check-in", h.Booking.CheckIn)
		api.POST("/bookings/:id/check-out", h.Booking.CheckOut)
		api.PUT("/bookings/:id/payment-status", h.Booking.PaymentStatus)
		api.GET("/me/bookings", h.Booking.ListMine)
		api.GET("/host/bookings", h.Booking.ListHosted)
		api.GET("/host/bookings/upcoming", h.Booking.Upcoming)
		api.GET("/host/listings/:id/bookings", h.Booking.ListListing)
		api.GET("/host/listings/:id/stats", h.Booking.ListingStats)
	}
	if h.Availability != nil {
		api.GET("/listings/:id/calendar", h.Availability.Calendar)
		api.GET("/listings/:id/availability", h.Availability.Check)
		api.GET("/listings/:id/price", h.Availability.Price)
	}
	if h.Commission != nil {
		api.POST("/bookings/:id/commission", h.Commission.Create)
		api.GET("/commissions/rate", h.Commission.Rate)
		api.GET("/commissions/preview", h.Commission.Preview)
		api.GET("/commissions/:id", h.Commission.Get)
		api.POST("/commissions/:id/pay", h.Commission.Pay)
		api.POST("/commissions/:id/fail", h.Commission.Fail)
		api.POST("/commissions/:id/transition", h.Commission.Transition)
		hostGroup := api.Group("/host/commissions")
		hostGroup.GET("", h.Commission.ListHosted)
		hostGroup.GET("/pending", h.Commission.Pending)
		api.GET("/host/earnings", h.Commission.Earnings)
		api.GET("/platform/revenue", h.Commission.PlatformRevenue)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
