package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campusattend/internal/attendance"
	"campusattend/internal/audit"
	"campusattend/internal/auth"
	"campusattend/internal/config"
	"campusattend/internal/export"
	"campusattend/internal/feed"
	"campusattend/internal/gateway"
	"campusattend/internal/httpmiddleware"
	"campusattend/internal/photos"
	"campusattend/internal/roll"
	"campusattend/internal/shift"
	"campusattend/internal/store"
	"campusattend/internal/sweeper"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var board feed.Feed
	if cfg.FeedBackend == "memory" {
		board = feed.NewInMemory(cfg.FeedSize)
	} else {
		board = feed.NewRedisFeed(redisClient.Client, "attendance:scanfeed", cfg.FeedSize)
	}

	repo := attendance.NewRepository(db.Client)
	auditLog := audit.New(db.Client)
	settings := shift.NewSettingsStore(db.Client)
	svc := attendance.NewService(repo, auditLog)
	gw := gateway.New(repo, settings, board, cfg.MaxStudents,
		gateway.WithStoreTimeout(cfg.StoreTimeout))
	sw := sweeper.New(repo, settings, board, auditLog)

	photoClient := photos.New(cfg.PhotoCloudName, cfg.PhotoAPIKey, cfg.PhotoAPISecret, cfg.PhotoFolder)
	if photoClient == nil {
		log.Println("photo storage not configured (PHOTO_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		ctx := c.Request.Context()
		redisHealthy := redisClient.Healthy(ctx)
		dbHealthy := db.Client.PingContext(ctx) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/stations/register", func(c *gin.Context) {
		var req struct {
			StationID string `json:"station_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		token, err := auth.Issue(req.StationID, auth.RoleStation, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token": token.Value,
			"expires_at":   token.Expires.Unix(),
		})
	})

	r.POST("/v1/admin/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if cfg.AdminPassword == "" ||
			subtle.ConstantTimeCompare([]byte(req.Username), []byte(cfg.AdminUser)) != 1 ||
			subtle.ConstantTimeCompare([]byte(req.Password), []byte(cfg.AdminPassword)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		token, err := auth.Issue(req.Username, auth.RoleAdmin, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token": token.Value,
			"csrf_token":   auth.CSRFToken(req.Username, cfg.CSRFSecret),
			"expires_at":   token.Expires.Unix(),
		})
	})

	station := r.Group("/v1", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleStation))

	station.POST("/scan", func(c *gin.Context) {
		var req struct {
			Identifier string `json:"identifier" binding:"required"`
			Source     string `json:"source"`
			Notes      string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		source := gateway.SourceScanner
		if req.Source == string(gateway.SourceManual) {
			source = gateway.SourceManual
		}
		res, err := gw.SubmitScan(c.Request.Context(), req.Identifier, source, req.Notes)
		if err != nil {
			c.JSON(scanErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	station.GET("/scans/recent", func(c *gin.Context) {
		limit := 10
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		entries, err := gw.RecentScans(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"scans": entries})
	})

	station.GET("/scans/stats", func(c *gin.Context) {
		stats, err := gw.ScanStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	station.GET("/students/:id/preview", func(c *gin.Context) {
		student, rec, err := gw.StudentPreview(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(scanErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"student": student, "record": rec})
	})

	admin := r.Group("/v1/admin",
		auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin),
		auth.RequireCSRF(cfg.CSRFSecret))

	admin.GET("/attendance", func(c *gin.Context) {
		filter, err := parseListFilter(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		records, total, err := repo.List(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"records":  records,
			"total":    total,
			"page":     filter.Page,
			"per_page": filter.PerPage,
		})
	})

	admin.PUT("/attendance/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
			return
		}
		var req struct {
			Status string `json:"status" binding:"required"`
			Notes  string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status, err := attendance.ParseStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.Override(c.Request.Context(), id, status, req.Notes, actor(c)); err != nil {
			if errors.Is(err, attendance.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		rec, err := repo.RecordByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"record": rec})
	})

	admin.DELETE("/attendance/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
			return
		}
		if err := svc.DeleteRecord(c.Request.Context(), id, actor(c)); err != nil {
			if errors.Is(err, attendance.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	})

	admin.POST("/attendance/bulk-status", func(c *gin.Context) {
		var req struct {
			IDs    []int64 `json:"ids" binding:"required"`
			Status string  `json:"status" binding:"required"`
			Notes  string  `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status, err := attendance.ParseStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := svc.BulkChangeStatus(c.Request.Context(), req.IDs, status, req.Notes, actor(c))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	admin.POST("/attendance/bulk-delete", func(c *gin.Context) {
		var req struct {
			IDs []int64 `json:"ids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := svc.BulkDelete(c.Request.Context(), req.IDs, actor(c))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	admin.POST("/attendance/mark-absent", func(c *gin.Context) {
		res, err := sw.Run(c.Request.Context(), true, actor(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	admin.POST("/attendance/auto-absent", func(c *gin.Context) {
		res, err := sw.Run(c.Request.Context(), false, actor(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	admin.GET("/attendance/export", func(c *gin.Context) {
		filter, err := parseListFilter(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Export ignores pagination; cap the dump instead.
		filter.Page = 1
		filter.PerPage = 100000
		records, _, err := repo.List(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		name := "attendance_" + time.Now().Format("2006-01-02")
		switch c.DefaultQuery("format", "csv") {
		case "xlsx":
			c.Header("Content-Disposition", `attachment; filename="`+name+`.xlsx"`)
			c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			if err := export.XLSX(c.Writer, records); err != nil {
				log.Printf("xlsx export failed: %v", err)
			}
		case "csv":
			c.Header("Content-Disposition", `attachment; filename="`+name+`.csv"`)
			c.Header("Content-Type", "text/csv")
			if err := export.CSV(c.Writer, records); err != nil {
				log.Printf("csv export failed: %v", err)
			}
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		}
	})

	admin.POST("/students/:id/photo", func(c *gin.Context) {
		if photoClient == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "photo storage not configured"})
			return
		}
		studentID := roll.Normalize(c.Param("id"))
		if !roll.Valid(studentID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid roll number"})
			return
		}
		var req struct {
			Data string `json:"data" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provide {\"data\": \"<base64 data URL>\"}"})
			return
		}
		url, err := photoClient.Upload(c.Request.Context(), req.Data)
		if err != nil {
			log.Printf("photo upload failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "photo upload failed"})
			return
		}
		if err := repo.SetStudentPhoto(c.Request.Context(), studentID, url); err != nil {
			if errors.Is(err, attendance.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		auditLog.Record(c.Request.Context(), actor(c), "student_photo_update", studentID)
		c.JSON(http.StatusOK, gin.H{"url": url})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// actor returns the authenticated subject for audit entries.
func actor(c *gin.Context) string {
	if v, ok := c.Get("claims"); ok {
		if claims, ok := v.(auth.Claims); ok {
			return claims.Subject
		}
	}
	return "unknown"
}

// scanErrorStatus maps gateway errors onto HTTP codes.
func scanErrorStatus(err error) int {
	switch {
	case errors.Is(err, roll.ErrInvalidFormat):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrStudentNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseListFilter(c *gin.Context) (attendance.ListFilter, error) {
	var f attendance.ListFilter
	if v := c.Query("date_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, fmt.Errorf("invalid date_from: %v", err)
		}
		f.DateFrom = &t
	}
	if v := c.Query("date_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, fmt.Errorf("invalid date_to: %v", err)
		}
		f.DateTo = &t
	}
	f.StudentID = roll.Normalize(c.Query("student_id"))
	f.Program = c.Query("program")
	f.Search = c.Query("search")
	if v := c.Query("shift"); v != "" {
		switch v {
		case string(shift.Morning), string(shift.Evening):
			f.Shift = shift.Shift(v)
		default:
			return f, fmt.Errorf("invalid shift %q", v)
		}
	}
	if v := c.Query("status"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			status, err := attendance.ParseStatus(strings.TrimSpace(raw))
			if err != nil {
				return f, err
			}
			f.Statuses = append(f.Statuses, status)
		}
	}
	if v := c.Query("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Page = parsed
		}
	}
	if v := c.Query("per_page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.PerPage = parsed
		}
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 20
	}
	return f, nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-CSRF-Token")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
