package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartattend/internal/admin"
	"smartattend/internal/attendance"
	"smartattend/internal/auth"
	"smartattend/internal/calendar"
	"smartattend/internal/config"
	"smartattend/internal/dress"
	"smartattend/internal/face"
	"smartattend/internal/httpmiddleware"
	"smartattend/internal/institute"
	"smartattend/internal/mailer"
	"smartattend/internal/photostore"
	"smartattend/internal/queue"
	"smartattend/internal/store"
	"smartattend/internal/student"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var events queue.Queue
	if cfg.QueueBackend == "memory" {
		events = queue.NewInMemory(64)
	} else {
		events = queue.NewRedisQueue(redisClient.Client, "smartattend:events")
	}

	faceClient := face.NewClient(cfg.FaceServiceURL, cfg.FaceServiceTimeout, cfg.FaceSkip)
	matcher := face.NewLinearMatcher(cfg.FaceMatchThreshold)
	verifier := dress.NewVerifier(cfg.DressMatchThreshold)

	institutes := institute.NewRepository(db.Client)
	students := student.NewRepository(db.Client)
	attendanceRepo := attendance.NewRepository(db.Client)
	holidayRepo := calendar.NewRepository(db.Client)
	dressRepo := dress.NewRepository(db.Client)
	adminRepo := admin.NewRepository(db.Client)

	var photos student.PhotoArchiver
	if cl := photostore.NewCloudinary(cfg.CloudinaryCloud, cfg.CloudinaryKey, cfg.CloudinarySecret, cfg.CloudinaryFolder); cl != nil {
		photos = cl
	}

	resolver := calendar.NewResolver(holidayRepo)
	enrollment := student.NewService(students, institutes, faceClient, photos)
	marking := attendance.NewService(attendanceRepo, students, institutes, resolver, dressRepo, verifier,
		faceClient, matcher, events, attendance.Options{DressFailClosed: cfg.DressFailClosed})
	smtp := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPLogin, cfg.SMTPPass, cfg.SenderEmail, cfg.SenderName)
	admins := admin.NewService(adminRepo, institutes, smtp, cfg.OTPExpiry)

	srvDeps := &server{
		cfg:        cfg,
		institutes: institutes,
		students:   students,
		records:    attendanceRepo,
		holidays:   holidayRepo,
		dressRefs:  dressRepo,
		resolver:   resolver,
		enrollment: enrollment,
		marking:    marking,
		admins:     admins,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewClientLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.GET("/", srvDeps.root)
	r.POST("/register-student", srvDeps.registerStudent)
	r.POST("/mark-attendance", srvDeps.markAttendance)
	r.GET("/check-holiday/:institute", srvDeps.checkHoliday)

	r.POST("/admin/register", srvDeps.adminRegister)
	r.POST("/admin/login", srvDeps.adminLogin)
	r.POST("/admin/send-otp", srvDeps.sendOTP)
	r.POST("/admin/verify-otp", srvDeps.verifyOTP)
	r.POST("/admin/reset-password-with-otp", srvDeps.resetPassword)

	authGroup := r.Group("/", auth.AdminAuth(cfg.JWTSigningKey, cfg.JWTIssuer))
	authGroup.GET("/admin/students/:instituteID", srvDeps.listStudents)
	authGroup.GET("/admin/attendance/:instituteID/today", srvDeps.todayAttendance)
	authGroup.DELETE("/admin/attendance/:instituteID/clear", srvDeps.clearAttendance)
	authGroup.GET("/admin/export-attendance/:instituteID", srvDeps.exportAttendance)
	authGroup.POST("/admin/dress-code/upload", srvDeps.uploadDressCode)
	authGroup.GET("/admin/dress-codes/:instituteID", srvDeps.listDressCodes)
	authGroup.DELETE("/admin/dress-code/:id", srvDeps.deleteDressCode)
	authGroup.GET("/holidays/:instituteID", srvDeps.listHolidays)
	authGroup.POST("/admin/toggle-holiday", srvDeps.toggleHoliday)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // verification requests can be slow
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
