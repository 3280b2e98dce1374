package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/api"
	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/db"
	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/logging"
	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/sequence"
	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/services"
	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/signature"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Ensure all log output goes to stdout so App Runner captures it in Application Logs
	log.SetOutput(os.Stdout)

	log.Printf("Workflow Service starting (GIT_SHA=%s BUILD_TIME=%s)", os.Getenv("GIT_SHA"), os.Getenv("BUILD_TIME"))

	// Initialize database connection (non-fatal; allow process to start for /live)
	database, err := db.NewDatabase()
	if err != nil {
		log.Printf("[WARN] Database initialization failed at startup: %v", err)
	}
	if database != nil {
		defer database.Close()
	}

	// Initialize AWS configs separately for SES (email) and SNS (SMS)
	sesRegion := os.Getenv("SES_AWS_REGION")
	if sesRegion == "" {
		if os.Getenv("AWS_DEFAULT_REGION") != "" {
			sesRegion = os.Getenv("AWS_DEFAULT_REGION")
		} else {
			sesRegion = "eu-central-1"
		}
	}
	sesCfg, sesErr := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(sesRegion),
	)
	if sesErr != nil {
		log.Printf("[WARN] SES AWS config load failed: %v", sesErr)
	}

	snsRegion := os.Getenv("SNS_AWS_REGION")
	if snsRegion == "" {
		if os.Getenv("AWS_DEFAULT_REGION") != "" {
			snsRegion = os.Getenv("AWS_DEFAULT_REGION")
		} else {
			snsRegion = "eu-central-1"
		}
	}
	snsCfg, snsErr := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(snsRegion),
	)
	if snsErr != nil {
		log.Printf("[WARN] SNS AWS config load failed: %v", snsErr)
	}

	// Initialize notification services
	var emailService *services.EmailService
	if sesErr == nil {
		emailService = services.NewEmailService(sesCfg)
	} else {
		log.Printf("[WARN] Email service not initialized due to SES config error")
	}
	var smsService *services.SmsService
	if snsErr == nil {
		smsService = services.NewSmsService(snsCfg)
	} else {
		log.Printf("[WARN] SMS service not initialized due to SNS config error")
	}

	// Domain wiring: allocator and coordinator over the shared pool
	baseURL := os.Getenv("SIGN_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	var teamEmails []string
	if emails := os.Getenv("TEAM_EMAILS"); emails != "" {
		teamEmails = splitCSV(emails)
	}

	var notifier signature.Notifier
	if emailService != nil {
		notifier = emailService
	}
	var alerter api.EmergencyAlerter
	if smsService != nil {
		alerter = smsService
	}

	allocator := sequence.NewAllocator(database)
	coordinator := signature.NewCoordinator(database, notifier, baseURL, teamEmails)

	var store api.DocumentStore
	if database != nil {
		store = database
	}
	handler := api.NewHandler(store, allocator, coordinator, notifier, alerter)

	if database == nil {
		log.Println("[WARN] Database unavailable at startup; readiness will report accordingly")
	}

	// Set up Gin router
	router := setupRouter(handler)

	// Get port from environment or use default
	port := os.Getenv("WORKFLOW_PORT")
	if port == "" {
		port = "8084"
	}

	// Set up graceful shutdown
	go func() {
		log.Printf("Starting workflow service on port %s", port)
		if err := router.Run(":" + port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down workflow service...")
}

func setupRouter(handler *api.Handler) *gin.Engine {
	// Set Gin mode based on environment
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(logging.JSONLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Liveness and readiness endpoints
	// /live returns 200 if the process is running (no DB checks)
	router.GET("/live", func(c *gin.Context) { c.Status(200) })
	// /ready performs DB checks
	router.GET("/ready", handler.Health)
	// Keep /health for App Runner legacy health checks, but make it liveness-only
	router.GET("/health", func(c *gin.Context) { c.Status(200) })

	// Public signing pages: the token in the URL is the credential
	router.GET("/sign/:token", handler.GetSignPage)
	router.POST("/sign/:token", handler.PostSign)

	// Staff API
	v1 := router.Group("/api/v1")
	v1.Use(api.AuthMiddleware())
	{
		v1.POST("/enquiries", handler.CreateEnquiry)

		v1.GET("/documents", handler.ListDocuments)
		v1.GET("/documents/:id", handler.GetDocument)
		v1.DELETE("/documents/:id", api.ManagerMiddleware(), handler.CancelDocument)
		v1.GET("/documents/:id/progress", handler.GetProgress)

		v1.PATCH("/documents/:id/assign", handler.AssignEstimator)
		v1.PATCH("/documents/:id/quote", handler.RecordQuote)
		v1.PATCH("/documents/:id/order", handler.RecordOrder)
		v1.PATCH("/documents/:id/invoice", handler.RecordInvoice)
		v1.PATCH("/documents/:id/status", handler.UpdateStatus)
		v1.POST("/documents/:id/job", handler.CreateJob)
		v1.POST("/documents/:id/signatures", api.ManagerMiddleware(), handler.IssueSignature)

		v1.POST("/jobs/emergency", handler.CreateEmergencyJob)
		v1.POST("/jobs/:id/children", handler.CreateChildJob)
		v1.GET("/jobs/:id/children", handler.ListChildJobs)
	}

	// Root endpoint for basic info
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "workflow-service",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	return router
}

// corsMiddleware adds CORS headers to allow cross-origin requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// splitCSV splits a comma-separated env value, trimming blanks
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
