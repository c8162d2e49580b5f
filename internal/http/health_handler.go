package http

import (
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	DBStatus      string    `json:"db_status"`
	DataDirStatus string    `json:"data_dir_status"`
}

// HealthHandler reports whether the registry database answers and the
// data directory exists. Failures degrade the status; the endpoint itself
// always answers 200 so load balancers can read the body.
func HealthHandler(db *gorm.DB, dataDir string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbStatus := "ok"
		if db == nil {
			dbStatus = "error"
			logger.Error("Database connection unavailable")
		} else {
			sqlDB, err := db.DB()
			if err != nil {
				dbStatus = "error"
				logger.Error("Database connection error", slog.Any("error", err))
			} else if err := sqlDB.PingContext(c.UserContext()); err != nil {
				dbStatus = "error"
				logger.Error("Database ping failed", slog.Any("error", err))
			}
		}

		dataDirStatus := "ok"
		if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
			dataDirStatus = "missing"
		}

		health := HealthStatus{
			Status:        "ok",
			Timestamp:     time.Now(),
			DBStatus:      dbStatus,
			DataDirStatus: dataDirStatus,
		}
		if dbStatus != "ok" || dataDirStatus != "ok" {
			health.Status = "degraded"
		}

		return c.JSON(health)
	}
}
