package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mkaminsky/PocketLedger/internal/auth"
	database "github.com/mkaminsky/PocketLedger/internal/db"
	"github.com/mkaminsky/PocketLedger/internal/ledger/application"
	"github.com/mkaminsky/PocketLedger/internal/ledger/infrastructure"
	"github.com/mkaminsky/PocketLedger/internal/ledger/interfaces"
	"github.com/mkaminsky/PocketLedger/internal/user"
)

type Response struct {
	Message string `json:"message"`
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logrus.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Info("request completed")
	})
}

type Server struct {
	router             *http.ServeMux
	authHandler        *auth.Handler
	userHandler        *user.Handler
	authService        auth.Service
	transactionHandler *interfaces.TransactionHandler
	categoryHandler    *interfaces.CategoryHandler
	dbService          *database.DBService
}

func NewServer(
	authHandler *auth.Handler,
	authService auth.Service,
	userHandler *user.Handler,
	transactionHandler *interfaces.TransactionHandler,
	categoryHandler *interfaces.CategoryHandler,
	dbService *database.DBService,
) *Server {
	return &Server{
		authHandler:        authHandler,
		authService:        authService,
		userHandler:        userHandler,
		transactionHandler: transactionHandler,
		categoryHandler:    categoryHandler,
		dbService:          dbService,
		router:             http.NewServeMux(),
	}
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(Response{Message: "Path not found"})
}

func checkConfiguration() error {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, continuing with system environment variables")
	}
	if os.Getenv("JWT_SECRET") == "" {
		return errors.New("no JWT_SECRET provided")
	}
	return nil
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondPlain(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.dbService.Health()
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	respondPlain(w, status, stats)
}

func respondPlain(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) RegisterRoutes() {
	protect := s.authService.JWTAccessTokenMiddleware()

	// Public routes
	publicRoutes := http.NewServeMux()
	publicRoutes.Handle("POST /api/register", http.HandlerFunc(s.userHandler.HandleRegister))
	publicRoutes.Handle("POST /api/auth/login", http.HandlerFunc(s.authHandler.HandleLogin))
	publicRoutes.Handle("GET /api/ready", http.HandlerFunc(s.handleReady))
	publicRoutes.Handle("GET /api/health", http.HandlerFunc(s.handleHealth))

	// Protected routes (behind the JWT access token middleware)
	protectedRoutes := http.NewServeMux()
	protectedRoutes.Handle("GET /api/protected/profile", protect(http.HandlerFunc(s.userHandler.HandleGetProfile)))
	protectedRoutes.Handle("POST /api/protected/2fa/init", protect(http.HandlerFunc(s.authHandler.HandleInitTwoFactor)))
	protectedRoutes.Handle("POST /api/protected/2fa/confirm", protect(http.HandlerFunc(s.authHandler.HandleConfirmTwoFactor)))

	// TRANSACTIONS API
	protectedRoutes.Handle("POST /api/protected/transactions", protect(http.HandlerFunc(s.transactionHandler.CreateTransaction)))
	protectedRoutes.Handle("GET /api/protected/transactions", protect(http.HandlerFunc(s.transactionHandler.GetUserTransactions)))
	protectedRoutes.Handle("GET /api/protected/transactions/balance", protect(http.HandlerFunc(s.transactionHandler.GetBalance)))
	protectedRoutes.Handle("GET /api/protected/transactions/stats", protect(http.HandlerFunc(s.transactionHandler.GetStatsByPeriod)))
	protectedRoutes.Handle("GET /api/protected/transactions/sum", protect(http.HandlerFunc(s.transactionHandler.GetSumByType)))
	protectedRoutes.Handle("GET /api/protected/transactions/{id}", protect(http.HandlerFunc(s.transactionHandler.GetTransaction)))
	protectedRoutes.Handle("PATCH /api/protected/transactions/{id}", protect(http.HandlerFunc(s.transactionHandler.UpdateTransaction)))
	protectedRoutes.Handle("DELETE /api/protected/transactions/{id}", protect(http.HandlerFunc(s.transactionHandler.DeleteTransaction)))

	// CATEGORIES API
	protectedRoutes.Handle("POST /api/protected/categories", protect(http.HandlerFunc(s.categoryHandler.CreateCategory)))
	protectedRoutes.Handle("GET /api/protected/categories", protect(http.HandlerFunc(s.categoryHandler.GetUserCategories)))
	protectedRoutes.Handle("GET /api/protected/categories/{id}", protect(http.HandlerFunc(s.categoryHandler.GetCategory)))
	protectedRoutes.Handle("PUT /api/protected/categories/{id}", protect(http.HandlerFunc(s.categoryHandler.UpdateCategory)))
	protectedRoutes.Handle("DELETE /api/protected/categories/{id}", protect(http.HandlerFunc(s.categoryHandler.DeleteCategory)))

	// Main router
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/api/", publicRoutes)
	mainRouter.Handle("/api/protected/", protectedRoutes)
	mainRouter.Handle("/", http.HandlerFunc(notFoundHandler))

	s.router = mainRouter
}

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if err := checkConfiguration(); err != nil {
		logrus.WithError(err).Fatal("Missing configuration, update to start server")
	}

	dbService, err := database.NewDBService()
	if err != nil {
		logrus.WithError(err).Fatal("Could not initialize database")
	}
	defer dbService.Close()

	if err := database.RunMigrations(dbService.DB); err != nil {
		logrus.WithError(err).Fatal("Could not apply database migrations")
	}

	jwtManager := auth.NewJWTManager(os.Getenv("JWT_SECRET"))

	userRepo := user.NewUserRepository(dbService.DB)
	userService := user.NewUserService(userRepo)
	userHandler := user.NewHandler(userService)

	authService := auth.NewAuthService(userService, jwtManager)
	authHandler := auth.NewHandler(authService)

	transactionRepo := infrastructure.NewPersonalTransactionRepository(dbService.DB)
	ledgerService := application.NewPersonalLedgerService(transactionRepo)
	transactionHandler := interfaces.NewTransactionHandler(ledgerService)

	categoryRepo := infrastructure.NewCategoryRepository(dbService.DB)
	categoryService := application.NewCategoryService(categoryRepo)
	categoryHandler := interfaces.NewCategoryHandler(categoryService)

	server := NewServer(authHandler, authService, userHandler, transactionHandler, categoryHandler, dbService)
	server.RegisterRoutes()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logrus.WithField("port", port).Info("Server starting")
	if err := http.ListenAndServe(":"+port, loggingMiddleware(server.router)); err != nil {
		logrus.WithError(err).Fatal("Server failed to start")
	}
}
