package server

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muurk/modbusreader/internal/deviceconfig"
	"github.com/muurk/modbusreader/internal/logging"
	"github.com/muurk/modbusreader/internal/notify"
	"github.com/muurk/modbusreader/internal/reader"
	"github.com/muurk/modbusreader/internal/runtimeconfig"
)

// maxBodySize bounds the runtime configuration document.
const maxBodySize = 64 << 10

// UpdatedMessage is broadcast after every successful configuration write.
const UpdatedMessage = "Runtime configuration updated"

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware())

	router.GET(deviceconfig.PathHealth, s.handleHealth)

	api := router.Group(deviceconfig.APIPrefix)
	{
		api.GET("/device/info", s.handleDeviceInfo)
		api.GET("/runtime/configuration", s.handleGetRuntimeConfig)
		api.PUT("/runtime/configuration", s.requireAuth(), s.handlePutRuntimeConfig)
		api.GET("/runtime", s.handleRuntime)
		api.GET("/runtime/export", s.handleExport)
		api.GET("/events", s.requireAuth(), s.handleEvents)
	}

	return router
}

// requireAuth checks HTTP basic credentials when the server has any configured.
// It guards configuration writes and the event stream.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.config.Username == "" {
			c.Next()
			return
		}
		user, pass, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.config.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.config.Password)) != 1 {
			logging.Warn("Rejected unauthenticated write",
				zap.String("remote_addr", c.ClientIP()),
				zap.String("user", user),
			)
			c.Header("WWW-Authenticate", `Basic realm="modbusreader"`)
			c.String(http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// deviceFailure answers a failed reader operation with a 502 carrying the
// error text. Failures reach only the caller; the event stream is for
// changes other consoles need to hear about.
func (s *Server) deviceFailure(c *gin.Context, op string, err error) {
	logging.Error("Reader operation failed", zap.String("op", op), zap.Error(err))
	_ = c.Error(err)
	c.String(http.StatusBadGateway, err.Error())
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	logging.Warn("Rejected runtime configuration", zap.String("reason", msg))
	c.String(http.StatusBadRequest, msg)
}

// announce broadcasts a notification caused by the request in c, tagged with
// the requesting client's ID.
func (s *Server) announce(c *gin.Context, kind notify.Kind, message string) {
	n := notify.New(kind, message)
	n.Origin = c.GetHeader(deviceconfig.HeaderClientID)
	notify.LogNotifier{}.Notify(kind, message)
	s.broadcaster.Publish(n)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"event_streams": s.EventStreams(),
	})
}

func (s *Server) handleDeviceInfo(c *gin.Context) {
	info, err := s.device.DeviceInfo(c.Request.Context())
	if err != nil {
		s.deviceFailure(c, "device_info", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleGetRuntimeConfig(c *gin.Context) {
	rc, err := s.device.RuntimeConfig(c.Request.Context())
	if err != nil {
		s.deviceFailure(c, "get_runtime_configuration", err)
		return
	}
	c.JSON(http.StatusOK, rc.Flatten())
}

func (s *Server) handlePutRuntimeConfig(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize+1))
	if err != nil {
		s.badRequest(c, "failed to read request body: "+err.Error())
		return
	}
	if len(body) > maxBodySize {
		s.badRequest(c, "request body too large")
		return
	}

	shape, err := deviceconfig.DecodeShape(body)
	if err != nil {
		s.badRequest(c, deviceconfig.NotificationMessage(err))
		return
	}
	if err := deviceconfig.ValidateComplete(shape); err != nil {
		s.badRequest(c, deviceconfig.NotificationMessage(err))
		return
	}

	rc := runtimeconfig.New(shape)
	if _, err := reader.RuntimeRegisters(rc); err != nil {
		s.badRequest(c, err.Error())
		return
	}
	for _, w := range deviceconfig.ValidateRuntimeConfig(rc) {
		logging.Warn("Accepted questionable runtime configuration", zap.String("warning", w.Error()))
	}

	if err := s.device.WriteRuntimeConfig(c.Request.Context(), rc); err != nil {
		s.deviceFailure(c, "put_runtime_configuration", err)
		return
	}

	s.announce(c, notify.KindInfo, UpdatedMessage)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRuntime(c *gin.Context) {
	items, err := s.device.RuntimeRegisters(c.Request.Context())
	if err != nil {
		s.deviceFailure(c, "runtime_registers", err)
		return
	}
	if items == nil {
		items = []deviceconfig.RuntimeRegisterItem{}
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) handleExport(c *gin.Context) {
	export, err := s.device.Export(c.Request.Context())
	if err != nil {
		s.deviceFailure(c, "runtime_export", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+deviceconfig.ExportFileName(s.now())+`"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(export))
}
