package authority

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"weekplan/internal/model"
	"weekplan/internal/remote"
)

const contextKeyToken = "token"

// Handler exposes a Service over HTTP.
type Handler struct {
	svc    *Service
	logger *log.Logger
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, logger: svc.logger}
}

// NewRouter builds the gin engine with CORS, health and the /api/v1 routes.
func NewRouter(svc *Service) *gin.Engine {
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "PUT", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}))
	Setup(r, NewHandler(svc))
	return r
}

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, h *Handler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := r.Group("/api/v1", RequireToken())
	api.GET("/beacon", h.Beacon)
	api.GET("/versions", h.Versions)
	api.GET("/schedule", h.ReadSchedule)
	api.PUT("/schedule", h.WriteSchedule)
	api.GET("/overrides/:date", h.ReadOverride)
	api.PUT("/overrides/:date", h.WriteOverride)
}

// RequireToken reads "Authorization: Bearer <token>". The token is opaque;
// it only selects the namespace.
func RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, remote.Status{Error: remote.CodeUnauthorized})
			return
		}
		c.Set(contextKeyToken, strings.TrimSpace(token))
		c.Next()
	}
}

func tokenFrom(c *gin.Context) string {
	return c.GetString(contextKeyToken)
}

var okStatus = remote.Status{OK: true}

func (h *Handler) fail(c *gin.Context, err error) {
	var rerr *remote.Error
	if !errors.As(err, &rerr) {
		h.logger.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		rerr = &remote.Error{Code: remote.CodeInternal}
	}
	status := http.StatusInternalServerError
	switch rerr.Code {
	case remote.CodeBadInput:
		status = http.StatusBadRequest
	case remote.CodeNotFound:
		status = http.StatusNotFound
	case remote.CodeUnauthorized:
		status = http.StatusUnauthorized
	}
	c.JSON(status, remote.Status{Error: rerr.Code})
}

func (h *Handler) Beacon(c *gin.Context) {
	b, err := h.svc.Beacon(c.Request.Context(), tokenFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.BeaconResponse{Status: okStatus, Beacon: b})
}

func (h *Handler) Versions(c *gin.Context) {
	v, err := h.svc.ListVersions(c.Request.Context(), tokenFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.VersionsResponse{Status: okStatus, Versions: v})
}

func (h *Handler) ReadSchedule(c *gin.Context) {
	s, err := h.svc.ReadSchedule(c.Request.Context(), tokenFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.ScheduleResponse{Status: okStatus, Schedule: s.Week, Meta: s.Meta})
}

func (h *Handler) ReadOverride(c *gin.Context) {
	d, err := h.svc.ReadOverride(c.Request.Context(), tokenFrom(c), c.Param("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.OverrideResponse{
		Status:   okStatus,
		Override: remote.OverrideBody{DateKey: d.DateKey, Tasks: d.Tasks},
		Meta:     d.Meta,
	})
}

func (h *Handler) WriteSchedule(c *gin.Context) {
	var req remote.WriteScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, &remote.Error{Code: remote.CodeBadInput})
		return
	}
	res, err := h.svc.WriteSchedule(c.Request.Context(), tokenFrom(c), model.Schedule{Week: req.Schedule, Meta: req.ClientMeta})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.WriteResponse{Status: okStatus, WriteResult: res})
}

func (h *Handler) WriteOverride(c *gin.Context) {
	var req remote.WriteOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, &remote.Error{Code: remote.CodeBadInput})
		return
	}
	date := c.Param("date")
	if req.Override.DateKey != "" && req.Override.DateKey != date {
		h.fail(c, &remote.Error{Code: remote.CodeBadInput})
		return
	}
	d := model.DayOverride{DateKey: date, Tasks: req.Override.Tasks, Meta: req.ClientMeta}
	res, err := h.svc.WriteOverride(c.Request.Context(), tokenFrom(c), d)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, remote.WriteResponse{Status: okStatus, WriteResult: res})
}
