package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okton/shopfloor/internal/config"
	"github.com/okton/shopfloor/internal/scheduler"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, schedCfg config.SchedulerConfig) {
	api := router.Group("/api")

	api.POST("/schedule/run", handleRunPass(db, schedCfg))
	api.GET("/schedule", handleSchedule(db))
	api.GET("/schedule/gantt", handleGantt(db))
	api.GET("/machines", handleMachines(db))
	api.GET("/orders", handleOrders(db))
}

// handleRunPass triggers one scheduling pass. Optional query parameters:
// anchor (RFC 3339, defaults to now) and horizon (minutes, overrides the
// computed horizon).
func handleRunPass(db *gorm.DB, schedCfg config.SchedulerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		anchor := time.Now().UTC()
		if raw := c.Query("anchor"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "anchor must be RFC 3339"})
				return
			}
			anchor = parsed
		}

		horizon := 0
		if raw := c.Query("horizon"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "horizon must be a positive integer of minutes"})
				return
			}
			horizon = parsed
		}

		result, err := scheduler.RunSchedulingPass(db, schedCfg, anchor, horizon)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleSchedule(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := CurrentSchedule(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tasks": rows})
	}
}

func handleGantt(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		lanes, err := GanttData(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"lanes": lanes})
	}
}

func handleMachines(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := MachineList(db, time.Now().UTC())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"machines": rows})
	}
}

func handleOrders(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := OrderList(db, c.Query("status"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": rows})
	}
}
