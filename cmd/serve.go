package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mirchapp/menu-pipeline/internal/model"
	"github.com/mirchapp/menu-pipeline/internal/monitoring"
	"github.com/mirchapp/menu-pipeline/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for scrape requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", handleHealth)
		r.Get("/api/stats", handleStats(env))
		r.Post("/api/restaurants/scrape", handleScrape(env))
		r.Get("/api/restaurants/{placeID}/menu", handleGetMenu(env))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// scrapeResponse is the success envelope for the scrape endpoint.
type scrapeResponse struct {
	Success         bool   `json:"success"`
	RestaurantID    string `json:"restaurantId,omitempty"`
	RestaurantSlug  string `json:"restaurantSlug,omitempty"`
	TotalCategories int    `json:"totalCategories,omitempty"`
	TotalItems      int    `json:"totalItems,omitempty"`
	Message         string `json:"message"`
	AlreadyExists   bool   `json:"alreadyExists,omitempty"`
}

// errorResponse is the failure envelope for every endpoint.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStats(env *appEnv) http.HandlerFunc {
	collector := monitoring.NewCollector(env.Store)
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := collector.Collect(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Details: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleScrape(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.PlaceID == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "placeId is required"})
			return
		}

		outcome, err := env.Pipeline.Run(r.Context(), req)
		if err != nil {
			writeScrapeError(w, req.PlaceID, err)
			return
		}

		msg := "Menu scraped successfully"
		if outcome.AlreadyExists {
			msg = "Restaurant already exists"
		}
		writeJSON(w, http.StatusOK, scrapeResponse{
			Success:         true,
			RestaurantID:    outcome.RestaurantID,
			RestaurantSlug:  outcome.Slug,
			TotalCategories: outcome.TotalCategories,
			TotalItems:      outcome.TotalItems,
			Message:         msg,
			AlreadyExists:   outcome.AlreadyExists,
		})
	}
}

func writeScrapeError(w http.ResponseWriter, placeID string, err error) {
	switch {
	case errors.Is(err, pipeline.ErrMenuNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error: "could not find a menu for this restaurant",
		})
	case errors.Is(err, pipeline.ErrNoWebsite):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: "restaurant has no website to scrape",
		})
	default:
		zap.L().Error("scrape request failed",
			zap.String("place_id", placeID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal error",
			Details: err.Error(),
		})
	}
}

// menuResponse is the read endpoint's payload: the restaurant with its
// categories and their items in display order.
type menuResponse struct {
	Restaurant *model.Restaurant  `json:"restaurant"`
	Categories []menuCategoryView `json:"categories"`
}

type menuCategoryView struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	DisplayOrder int                    `json:"displayOrder"`
	Items        []model.MenuItemRecord `json:"items"`
}

func handleGetMenu(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		placeID := chi.URLParam(r, "placeID")

		restaurant, err := env.Store.GetRestaurantByPlaceID(r.Context(), placeID)
		if err != nil {
			zap.L().Error("menu lookup failed", zap.String("place_id", placeID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Details: err.Error()})
			return
		}
		if restaurant == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "restaurant not found"})
			return
		}

		cats, err := env.Store.ListCategories(r.Context(), restaurant.ID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Details: err.Error()})
			return
		}
		items, err := env.Store.ListItems(r.Context(), restaurant.ID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Details: err.Error()})
			return
		}

		byCategory := make(map[string][]model.MenuItemRecord, len(cats))
		for _, it := range items {
			byCategory[it.CategoryID] = append(byCategory[it.CategoryID], it)
		}

		resp := menuResponse{Restaurant: restaurant, Categories: make([]menuCategoryView, 0, len(cats))}
		for _, c := range cats {
			resp.Categories = append(resp.Categories, menuCategoryView{
				ID:           c.ID,
				Name:         c.Name,
				DisplayOrder: c.DisplayOrder,
				Items:        byCategory[c.ID],
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
