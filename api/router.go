// Package api exposes the mood pipeline over HTTP.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/edmo-mood/config"
	"github.com/maastricht-university/edmo-mood/logging"
	"github.com/maastricht-university/edmo-mood/metrics"
	"github.com/maastricht-university/edmo-mood/orchestrator"
)

type Options struct {
	Config   *config.Root
	Pipeline *orchestrator.Pipeline
	Store    orchestrator.Recorder
	Logger   *logrus.Logger
}

// Server holds the handlers' dependencies.
type Server struct {
	cfg  *config.Root
	pipe *orchestrator.Pipeline
	rec  orchestrator.Recorder
	log  *logrus.Entry
	now  func() time.Time
}

// Build constructs a gin engine with recovery, request logging and CORS and
// registers every route.
func Build(opts Options) (*gin.Engine, error) {
	if opts.Config == nil || opts.Pipeline == nil || opts.Store == nil {
		return nil, fmt.Errorf("http router requires config, pipeline and store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	switch opts.Config.HTTP.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(opts.Config.HTTP.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:  opts.Config,
		pipe: opts.Pipeline,
		rec:  opts.Store,
		log:  logger.WithField("component", "http"),
		now:  time.Now,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(s.log))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	engine.GET("/health", s.health)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := engine.Group("/api")
	api.POST("/emotions", s.saveEmotion)
	api.GET("/emotions", s.listEmotions)
	api.POST("/voice-analysis", s.voiceAnalysis)
	api.POST("/face-analysis", s.faceAnalysis)
	api.GET("/combined-mood", s.combinedMood)
	api.GET("/emotion-timeline", s.emotionTimeline)
	api.GET("/taxonomy", s.taxonomy)
	api.DELETE("/sessions/:session_id", s.endSession)
	return engine, nil
}

func loggingMiddleware(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last().Err).Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "Facial expression and voice tone detector is running",
		"version": s.cfg.Service.Version,
	})
}
