package handlers

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/andrewpaige1/bookswap-api/metrics"
	"github.com/andrewpaige1/bookswap-api/middleware"
)

// Routes builds the full HTTP surface. authMiddleware attaches token claims
// when a valid token is presented; limiter throttles the credential routes.
func (db *DBHandler) Routes(authMiddleware func(http.Handler) http.Handler, limiter *middleware.RateLimiter, origins []string) http.Handler {
	user := middleware.RequireUser(db.DB, db.Logger)
	mux := http.NewServeMux()

	// Session
	mux.HandleFunc("POST /signup", limiter.Limit(db.Signup))
	mux.HandleFunc("POST /login", limiter.Limit(db.Login))
	mux.HandleFunc("POST /logout", db.Logout)
	mux.HandleFunc("GET /session/user", user(db.SessionUser))
	mux.HandleFunc("POST /session/refresh", user(db.RefreshSession))

	// OAuth
	mux.HandleFunc("GET /auth/{provider}", db.ProviderLogin)
	mux.HandleFunc("GET /auth/{provider}/callback", db.ProviderCallback)

	// Users
	mux.HandleFunc("GET /users/me", user(db.GetMe))
	mux.HandleFunc("PUT /users/me", user(db.UpdateMe))
	mux.HandleFunc("PUT /users/me/password", user(db.ChangePassword))
	mux.HandleFunc("GET /users/me/trades", user(db.GetMyTrades))
	mux.HandleFunc("GET /users/me/notifications", user(db.GetNotifications))
	mux.HandleFunc("POST /users/me/notifications/{notificationID}/read", user(db.MarkNotificationRead))
	mux.HandleFunc("DELETE /users/me/notifications/{notificationID}", user(db.DeleteNotification))
	mux.HandleFunc("GET /users/{username}", db.GetUserProfile)

	// Books
	mux.HandleFunc("GET /books/my", user(db.GetMyBooks))
	mux.HandleFunc("POST /books/my", user(db.AddBook))
	mux.HandleFunc("PUT /books/my/{bookID}", user(db.UpdateBook))
	mux.HandleFunc("DELETE /books/my/{bookID}", user(db.DeleteBook))

	// Requests
	mux.HandleFunc("POST /requests", user(db.CreateRequest))
	mux.HandleFunc("GET /requests/incoming", user(db.GetIncomingRequests))
	mux.HandleFunc("GET /requests/outgoing", user(db.GetOutgoingRequests))
	mux.HandleFunc("POST /requests/{requestID}/accept", user(db.AcceptRequest))
	mux.HandleFunc("DELETE /requests/{requestID}", user(db.CancelRequest))

	// API
	mux.HandleFunc("GET /api/users", db.ListUsers)
	mux.HandleFunc("GET /api/books", db.ListBooks)
	mux.HandleFunc("GET /api/books/{bookID}", db.GetBook)
	mux.HandleFunc("GET /api/requests", db.ListRequests)

	mux.HandleFunc("GET /health", db.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(middleware.Logging(db.Logger)(middleware.Metrics(mux)(authMiddleware(mux))))
}
