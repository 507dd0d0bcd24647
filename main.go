package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	alertsapp "child-monitoring/internal/alerts/application"
	alertevents "child-monitoring/internal/alerts/application/events"
	alerthttp "child-monitoring/internal/alerts/interfaces/http"
	"child-monitoring/internal/alerts/notify"
	"child-monitoring/internal/antares"
	"child-monitoring/internal/audit"
	"child-monitoring/internal/db"
	"child-monitoring/internal/db/migrate"
	directorypg "child-monitoring/internal/directory/infrastructure/postgres"
	directoryinterfaces "child-monitoring/internal/directory/interfaces"
	"child-monitoring/internal/eventing"
	eventingmem "child-monitoring/internal/eventing/infrastructure/memory"
	monitoringapp "child-monitoring/internal/monitoring/application"
	monitoring "child-monitoring/internal/monitoring/domain"
	monitoringmem "child-monitoring/internal/monitoring/infrastructure/memory"
	monitoringhttp "child-monitoring/internal/monitoring/interfaces/http"
	"child-monitoring/internal/observability/metrics"
	antareswebhook "child-monitoring/internal/telemetry/interfaces/antares"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer conn.Close()

	if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil {
		logger.Fatalf("db migrate error: %v", err)
	}

	metrics.Init(conn, logger)
	auditRepo := audit.NewRepository(conn)
	childRepo := directorypg.NewChildRepository(conn)
	mappingRepo := directorypg.NewMappingRepository(conn)

	fence, err := monitoring.NewGeofence(
		monitoring.Coordinate{Lat: cfg.SchoolLat, Lng: cfg.SchoolLng},
		cfg.RadiusKM,
		cfg.ArrivalRadiusKM,
	)
	if err != nil {
		logger.Fatalf("geofence error: %v", err)
	}

	bus := eventing.NewInMemoryBus()
	processedStore := eventingmem.NewProcessedStore()
	publisher, err := eventing.NewPublisher(bus)
	if err != nil {
		logger.Fatalf("publisher error: %v", err)
	}

	sessionRegistry := monitoringmem.NewSessionRegistry()
	monitorService, err := monitoringapp.NewService(sessionRegistry, mappingRepo, fence, publisher, logger)
	if err != nil {
		logger.Fatalf("monitor service error: %v", err)
	}

	messenger, err := notify.NewTelegramMessenger(cfg.TelegramAPIBase, cfg.TelegramBotToken)
	if err != nil {
		logger.Fatalf("telegram messenger error: %v", err)
	}
	overrides, err := notify.LoadOverrides(cfg.AlertTemplateFile)
	if err != nil {
		logger.Fatalf("alert template file error: %v", err)
	}
	templates, err := notify.NewTemplateSet(overrides)
	if err != nil {
		logger.Fatalf("alert templates error: %v", err)
	}

	routerOpts := []alertsapp.RouterOption{
		alertsapp.WithDeliveryLog(auditRepo),
		alertsapp.WithPublisher(publisher),
		alertsapp.WithSendTimeout(cfg.AlertNotifyTimeout),
	}
	if cfg.AntaresPostURL != "" {
		signaler, err := antares.NewClient(cfg.AntaresPostURL, cfg.AntaresAccessKey)
		if err != nil {
			logger.Fatalf("antares client error: %v", err)
		}
		routerOpts = append(routerOpts, alertsapp.WithDeviceSignaler(signaler))
	} else {
		logger.Printf("ANTARES_URL_POST not set, device arrival signal disabled")
	}

	dedupe := alertsapp.NewDedupe(cfg.AlertDedupeWindow)
	alertRouter, err := alertsapp.NewRouter(childRepo, mappingRepo, messenger, templates, dedupe, logger, routerOpts...)
	if err != nil {
		logger.Fatalf("alert router error: %v", err)
	}
	alertsapp.WireAlertRouting(bus, alertRouter, processedStore, logger)

	broker := alerthttp.NewSSEBroker()
	bus.SubscribeConsumer(eventing.EventTypeOf[alertevents.AlertRouted](), "alerts.stream", broker.Handle, processedStore)

	webhookHandler, err := antareswebhook.NewWebhookHandler(publisher, logger)
	if err != nil {
		logger.Fatalf("webhook handler error: %v", err)
	}
	sessionsHandler, err := monitoringhttp.NewSessionsHandler(monitorService, logger)
	if err != nil {
		logger.Fatalf("sessions handler error: %v", err)
	}
	locationsHandler, err := monitoringhttp.NewLocationsHandler(monitorService, logger)
	if err != nil {
		logger.Fatalf("locations handler error: %v", err)
	}
	rosterHandler, err := directoryinterfaces.NewRosterExportHandler(childRepo, mappingRepo, logger)
	if err != nil {
		logger.Fatalf("roster handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/monitor", webhookHandler)
	mux.Handle("/monitor/", webhookHandler)
	mux.Handle("/api/v1/sessions", sessionsHandler)
	mux.Handle("/api/v1/sessions/", sessionsHandler)
	mux.Handle("/api/v1/locations", locationsHandler)
	mux.Handle("/api/v1/alerts/stream", alerthttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/roster/export", rosterHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL        string
	HTTPAddr           string
	SchoolLat          float64
	SchoolLng          float64
	RadiusKM           float64
	ArrivalRadiusKM    float64
	TelegramBotToken   string
	TelegramAPIBase    string
	AntaresPostURL     string
	AntaresAccessKey   string
	AlertDedupeWindow  time.Duration
	AlertNotifyTimeout time.Duration
	AlertTemplateFile  string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":5000"),
		SchoolLat:          getenvFloatDefault("SCHOOL_LAT", 0),
		SchoolLng:          getenvFloatDefault("SCHOOL_LNG", 0),
		RadiusKM:           getenvFloatDefault("RADIUS_KM", 1.0),
		ArrivalRadiusKM:    getenvFloatDefault("ARRIVAL_RADIUS_KM", 0.1),
		TelegramBotToken:   getenvDefault("TELEGRAM_BOT_TOKEN", ""),
		TelegramAPIBase:    getenvDefault("TELEGRAM_API_BASE", ""),
		AntaresPostURL:     getenvDefault("ANTARES_URL_POST", ""),
		AntaresAccessKey:   getenvDefault("ANTARES_ACCESS_KEY", ""),
		AlertDedupeWindow:  getenvDuration("ALERT_DEDUP_WINDOW", 10*time.Second),
		AlertNotifyTimeout: getenvDuration("ALERT_NOTIFY_TIMEOUT", 5*time.Second),
		AlertTemplateFile:  getenvDefault("ALERT_TEMPLATE_FILE", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.SchoolLat == 0 && cfg.SchoolLng == 0 {
		log.Fatal("SCHOOL_LAT and SCHOOL_LNG are required")
	}
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s ip=%s", r.Method, r.URL.Path, resp.status, time.Since(start), audit.ClientIP(r))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE responses streaming through the middleware wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
