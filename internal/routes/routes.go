package routes

import (
	"net/http"
	"time"

	"github.com/commitmentparties/engine/internal/app"
	"github.com/commitmentparties/engine/internal/handler"
	"github.com/commitmentparties/engine/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	pool := handler.NewPoolHandler(app.PoolService, app.PoolRepo, app.ParticipantRepo)
	checkin := handler.NewCheckinHandler(app.CheckinService)
	auth := handler.NewAuthHandler(app.IdentityService)
	user := handler.NewUserHandler(app.PoolService)

	mux := http.NewServeMux()

	// Pools
	mux.HandleFunc("POST /pools", pool.Register)
	mux.HandleFunc("GET /pools/{id}", pool.Show)
	mux.HandleFunc("POST /pools/{id}/join", pool.Join)
	mux.HandleFunc("POST /pools/{id}/forfeit", pool.Forfeit)
	mux.HandleFunc("POST /pools/{id}/invites", pool.CreateInvite)
	mux.HandleFunc("POST /pools/{id}/check-now", pool.CheckNow)

	// Check-ins
	mux.HandleFunc("POST /pools/{id}/checkins", checkin.Submit)

	// GitHub identity
	mux.HandleFunc("GET /auth/github", auth.Begin)
	mux.HandleFunc("GET /auth/github/callback", auth.Callback)

	// Users
	mux.HandleFunc("GET /users/{wallet}/stats", user.Stats)

	var h http.Handler = mux
	h = middleware.RateLimit(120, time.Minute)(h)
	h = middleware.RequestLogging(h)
	return h
}
