package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/amasendi/ridepool-backend/internal/database"
	"github.com/amasendi/ridepool-backend/internal/handlers"
	"github.com/amasendi/ridepool-backend/internal/middleware"
	"github.com/amasendi/ridepool-backend/internal/series"
	"github.com/amasendi/ridepool-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Fatal("Error loading .env file")
	}

	// Initialize database with better error handling
	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Get underlying SQL DB instance
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Initialize Redis
	if err := services.InitRedis(); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}

	// Initialize archive storage (S3 or local fallback)
	if err := services.InitArchive(); err != nil {
		log.Fatalf("Failed to initialize archive storage: %v", err)
	}

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	// Series mutation machinery: one store, one executor, one coordinator
	executor := series.NewExecutor(series.NewGormStore(db))
	coordinator := series.NewCoordinator()

	// Initialize router
	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	// Routes
	api := r.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
		}

		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			// User routes
			users := protected.Group("/users")
			{
				users.GET("/profile", handlers.GetProfile(db))
				users.PUT("/profile", handlers.UpdateProfile(db))
			}

			// Posting routes
			postings := protected.Group("/postings")
			{
				postings.GET("", handlers.GetListings(db))
				postings.POST("", handlers.CreatePosting(db))
				postings.GET("/mine", handlers.GetMyPostings(db))
				postings.GET("/:id/scope-options", handlers.GetScopeOptions(executor, coordinator))
				postings.POST("/:id/scope-selection", handlers.SelectScope(coordinator))
				postings.POST("/:id/scope-cancel", handlers.CancelScopeSelection(coordinator))
				postings.PATCH("/:id", handlers.UpdatePosting(db, executor, coordinator, hub))
				postings.DELETE("/:id", handlers.DeletePosting(db, executor, coordinator, hub))
			}

			// Bookings routes
			bookings := protected.Group("/bookings")
			{
				bookings.POST("", handlers.CreateBooking(db))
				bookings.GET("/mine", handlers.GetMyBookings(db))
				bookings.GET("/postings", handlers.GetPostingBookings(db))
				bookings.PATCH("/:id/status", handlers.UpdateBookingStatus(db))
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
