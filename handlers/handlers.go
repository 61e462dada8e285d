package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dropwatch/middleware"
	"dropwatch/models"
	"dropwatch/repository"
	"dropwatch/scheduler"
	"dropwatch/scraper"
	"dropwatch/services"

	"github.com/gorilla/mux"
)

type Handlers struct {
	productRepo *repository.ProductRepository
	alertRepo   *repository.AlertRepository
	authService *services.AuthService
	fetcher     *scraper.Fetcher
	checker     *scheduler.PriceChecker
	taskManager *scheduler.TaskManager
}

func NewHandlers(productRepo *repository.ProductRepository, alertRepo *repository.AlertRepository, authService *services.AuthService, fetcher *scraper.Fetcher, checker *scheduler.PriceChecker) *Handlers {
	h := &Handlers{
		productRepo: productRepo,
		alertRepo:   alertRepo,
		authService: authService,
		fetcher:     fetcher,
		checker:     checker,
	}

	h.taskManager = scheduler.NewTaskManager(h.performPriceCheck, 5)

	return h
}

// Close stops the background workers owned by the handlers.
func (h *Handlers) Close() {
	if h.taskManager != nil {
		h.taskManager.Stop()
	}
}

// performPriceCheck runs an on-demand check for the task manager. Ownership
// is verified at submission time, so the product is loaded by id alone here.
func (h *Handlers) performPriceCheck(productID int64) (*models.ExtractedPrice, error) {
	product, err := h.productRepo.GetProduct(productID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	return h.checker.CheckProduct(ctx, *product)
}

// HealthCheck reports service liveness. Unauthenticated.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Register creates a new account and returns a session token.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.authService.Register(req.Email, req.Password)
	if err != nil {
		if strings.Contains(err.Error(), "already registered") {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Login authenticates a user and returns a session token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Me returns the authenticated user.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	user, err := h.authService.GetUser(userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// CreateProduct starts tracking a product URL. The page is scraped
// synchronously; when no price can be extracted the manual fields on the
// request are used instead, and the caller gets a 422 if those are absent.
func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	var req models.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" || (!strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://")) {
		writeError(w, http.StatusBadRequest, "A valid http(s) URL is required")
		return
	}
	if !req.TargetPrice.IsPositive() {
		writeError(w, http.StatusBadRequest, "target_price must be greater than zero")
		return
	}
	if req.CheckIntervalMinutes == 0 {
		req.CheckIntervalMinutes = 60
	}
	if req.CheckIntervalMinutes < 15 {
		writeError(w, http.StatusBadRequest, "check_interval_minutes must be at least 15")
		return
	}

	product := &models.Product{
		UserID:               userID,
		URL:                  req.URL,
		Currency:             "USD",
		CheckIntervalMinutes: req.CheckIntervalMinutes,
	}

	extracted, err := h.fetcher.FetchPrice(r.Context(), req.URL)
	switch {
	case err == nil:
		now := time.Now().UTC()
		product.Name = extracted.Name
		product.CurrentPrice.Decimal = extracted.Price
		product.CurrentPrice.Valid = true
		product.Currency = extracted.Currency
		product.ImageURL = extracted.ImageURL
		product.LastCheckedAt = &now

	case errors.Is(err, scraper.ErrNoPriceFound) && req.ManualPrice != nil:
		if !req.ManualPrice.IsPositive() {
			writeError(w, http.StatusBadRequest, "manual_price must be greater than zero")
			return
		}
		product.Name = req.ManualName
		product.CurrentPrice.Decimal = *req.ManualPrice
		product.CurrentPrice.Valid = true
		if req.ManualCurrency != "" {
			product.Currency = strings.ToUpper(req.ManualCurrency)
		}
		// Manually priced products stay immediately due for the next cycle.

	case errors.Is(err, scraper.ErrNoPriceFound):
		writeError(w, http.StatusUnprocessableEntity,
			"Could not find a price on this page. Provide manual_price to track it anyway.")
		return

	default:
		log.Printf("Failed to scrape %s: %v", req.URL, err)
		writeError(w, http.StatusBadGateway, "Failed to fetch the product page")
		return
	}

	if err := h.productRepo.CreateProduct(product); err != nil {
		log.Printf("Failed to create product: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}

	if _, err := h.alertRepo.CreateAlert(product.ID, req.TargetPrice); err != nil {
		log.Printf("Failed to create initial alert for product %d: %v", product.ID, err)
	}

	if product.HasPrice() {
		if err := h.productRepo.AddPriceHistory(product.ID, product.CurrentPrice.Decimal, product.Currency, time.Now().UTC()); err != nil {
			log.Printf("Failed to record initial history for product %d: %v", product.ID, err)
		}
	}

	writeJSON(w, http.StatusCreated, product)
}

// GetProducts lists the user's products with active alert counts.
func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	products, err := h.productRepo.GetProductsByUser(userID)
	if err != nil {
		log.Printf("Failed to list products for user %d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}
	if products == nil {
		products = []models.ProductWithAlerts{}
	}

	writeJSON(w, http.StatusOK, products)
}

// GetProduct returns one of the user's products.
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := h.ownedProduct(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// UpdateProduct changes tracking settings for a product.
func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authorization required")
		return
	}
	productID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req models.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CheckIntervalMinutes != nil && *req.CheckIntervalMinutes < 15 {
		writeError(w, http.StatusBadRequest, "check_interval_minutes must be at least 15")
		return
	}

	product, err := h.productRepo.UpdateProductSettings(productID, userID, req.CheckIntervalMinutes, req.IsActive)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		log.Printf("Failed to update product %d: %v", productID, err)
		writeError(w, http.StatusInternalServerError, "Failed to update product")
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// DeleteProduct removes a product along with its history and alerts.
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authorization required")
		return
	}
	productID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	if err := h.productRepo.DeleteProduct(productID, userID); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		log.Printf("Failed to delete product %d: %v", productID, err)
		writeError(w, http.StatusInternalServerError, "Failed to delete product")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

// GetPriceHistory returns history samples for a product, newest first.
// Supports start_date, end_date (RFC 3339) and limit query parameters.
func (h *Handlers) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	product, ok := h.ownedProduct(w, r)
	if !ok {
		return
	}

	var start, end *time.Time
	if v := r.URL.Query().Get("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be RFC 3339")
			return
		}
		start = &t
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_date must be RFC 3339")
			return
		}
		end = &t
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	history, err := h.productRepo.GetPriceHistory(product.ID, start, end, limit)
	if err != nil {
		log.Printf("Failed to get history for product %d: %v", product.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to get price history")
		return
	}
	if history == nil {
		history = []models.PriceHistory{}
	}

	writeJSON(w, http.StatusOK, history)
}

// CreateAlert adds a price alert to a product.
func (h *Handlers) CreateAlert(w http.ResponseWriter, r *http.Request) {
	product, ok := h.ownedProduct(w, r)
	if !ok {
		return
	}

	var req models.CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.TargetPrice.IsPositive() {
		writeError(w, http.StatusBadRequest, "target_price must be greater than zero")
		return
	}

	alert, err := h.alertRepo.CreateAlert(product.ID, req.TargetPrice)
	if err != nil {
		log.Printf("Failed to create alert for product %d: %v", product.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to create alert")
		return
	}

	writeJSON(w, http.StatusCreated, alert)
}

// GetAlerts lists the alerts on a product.
func (h *Handlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	product, ok := h.ownedProduct(w, r)
	if !ok {
		return
	}

	alerts, err := h.alertRepo.GetAlertsByProduct(product.ID)
	if err != nil {
		log.Printf("Failed to list alerts for product %d: %v", product.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []models.PriceAlert{}
	}

	writeJSON(w, http.StatusOK, alerts)
}

// UpdateAlert retargets, toggles, or reactivates an alert.
func (h *Handlers) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authorization required")
		return
	}
	alertID, err := pathID(r, "alertId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	var req models.UpdateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TargetPrice != nil && !req.TargetPrice.IsPositive() {
		writeError(w, http.StatusBadRequest, "target_price must be greater than zero")
		return
	}

	if _, err := h.alertRepo.GetAlertForUser(alertID, userID); err != nil {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}

	alert, err := h.alertRepo.UpdateAlert(alertID, req.TargetPrice, req.IsActive, req.Reactivate)
	if err != nil {
		log.Printf("Failed to update alert %d: %v", alertID, err)
		writeError(w, http.StatusInternalServerError, "Failed to update alert")
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// DeleteAlert removes an alert.
func (h *Handlers) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authorization required")
		return
	}
	alertID, err := pathID(r, "alertId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	if _, err := h.alertRepo.GetAlertForUser(alertID, userID); err != nil {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}

	if err := h.alertRepo.DeleteAlert(alertID); err != nil {
		log.Printf("Failed to delete alert %d: %v", alertID, err)
		writeError(w, http.StatusInternalServerError, "Failed to delete alert")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Alert deleted successfully"})
}

// CheckProductNow runs a synchronous on-demand price check and applies its
// result before responding.
func (h *Handlers) CheckProductNow(w http.ResponseWriter, r *http.Request) {
	product, ok := h.ownedProduct(w, r)
	if !ok {
		return
	}

	extracted, err := h.checker.CheckProduct(r.Context(), *product)
	if err != nil {
		if errors.Is(err, scraper.ErrNoPriceFound) {
			writeError(w, http.StatusUnprocessableEntity, "Could not find a price on this page")
			return
		}
		log.Printf("On-demand check failed for product %d: %v", product.ID, err)
		writeError(w, http.StatusBadGateway, "Price check failed")
		return
	}

	updated, err := h.productRepo.GetProductByID(product.ID, product.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload product")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"product":   updated,
		"extracted": extracted,
	})
}

// CheckProductAsync queues an on-demand price check and returns a task id.
func (h *Handlers) CheckProductAsync(w http.ResponseWriter, r *http.Request) {
	product, ok := h.ownedProduct(w, r)
	if !ok {
		return
	}

	task := h.taskManager.SubmitTask(product.ID)
	if task.Status == models.TaskStatusFailed {
		writeError(w, http.StatusServiceUnavailable, task.Error)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"task_id":    task.ID,
		"status":     task.Status,
		"message":    task.Message,
		"status_url": "/api/v1/tasks/" + task.ID,
	})
}

// GetTaskStatus returns the state of an async check task.
func (h *Handlers) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	task, exists := h.taskManager.GetTask(taskID)
	if !exists {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// GetTaskStats returns task manager statistics.
func (h *Handlers) GetTaskStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.taskManager.Stats())
}

// ownedProduct resolves the {id} path variable to a product owned by the
// authenticated user, writing the error response itself on failure.
func (h *Handlers) ownedProduct(w http.ResponseWriter, r *http.Request) (*models.Product, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authorization required")
		return nil, false
	}

	productID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product ID")
		return nil, false
	}

	product, err := h.productRepo.GetProductByID(productID, userID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "Product not found")
			return nil, false
		}
		log.Printf("Failed to load product %d: %v", productID, err)
		writeError(w, http.StatusInternalServerError, "Failed to load product")
		return nil, false
	}

	return product, true
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
