package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "delivery_failures",
			Help: "Failed rows in the delivery log",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM delivery_log WHERE status = 'failed'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "active_mappings",
			Help: "Active recipient mappings in the directory",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM recipient_mappings WHERE active")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
