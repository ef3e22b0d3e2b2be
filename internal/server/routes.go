package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/v1/health"
			},
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)

	users := v1.Group("/users/:address")
	users.GET("", h.User)
	users.GET("/balance", h.Balance)
	users.POST("/xp", h.GrantXP)
	users.PUT("/username", h.UpdateUsername)

	sessions := v1.Group("/sessions")
	sessions.POST("", h.OpenSession)
	sessions.GET("/:id", h.GetSession)
	sessions.PUT("/:id", h.UpdateSession)
	sessions.DELETE("/:id", h.CloseSession)

	// Airdrops move treasury funds; keep them slow per client.
	airdropRate := cfg.AirdropRateLimit
	if airdropRate <= 0 {
		airdropRate = 0.5
	}
	airdrops := v1.Group("/airdrops")
	airdrops.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(airdropRate),
		Burst:     2,
		ExpiresIn: 5 * time.Minute,
	})))
	airdrops.POST("", h.Airdrop)

	v1.POST("/contests/entries/prepare", h.PrepareContestEntry)
	v1.POST("/transactions", h.SubmitTransaction)
	v1.GET("/transactions/:signature", h.SignatureStatus)

	quizzes := v1.Group("/quizzes")
	quizzes.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.2), // 1 request every 5 seconds
		Burst:     5,
		ExpiresIn: 2 * time.Minute,
	})))
	quizzes.POST("", h.GenerateQuiz)
	quizzes.POST("/verify", h.VerifyQuiz)

	v1.GET("/rewards/recent", h.RecentRewards)

	flagGroup := v1.Group("/flags")
	flagGroup.GET("", h.FlagsList)
	flagGroup.POST("", h.FlagsUpsert)
	flagGroup.GET("/:key", h.FlagsGet)
	flagGroup.PUT("/:key", h.FlagsUpdate)
	flagGroup.DELETE("/:key", h.FlagsDelete)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
