package emulator

import (
	"errors"
	"io"
	"net/http"

	"hvac_gateway/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server exposes a Device over HTTP under /{name}.
type Server struct {
	dev  *Device
	name string
	log  *logger.Logger
}

func NewServer(dev *Device, name string, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{dev: dev, name: name, log: log}
}

// Routes builds the gin engine with the device API.
func (s *Server) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.faultInjection)

	g := router.Group("/" + s.name)
	{
		g.GET("/properties/:property", s.getProperty)
		g.PUT("/properties/:property", s.putProperty)
		g.POST("/actions/:action", s.postAction)
		g.GET("/all/properties", s.getAll)
	}
	return router
}

func (s *Server) faultInjection(c *gin.Context) {
	if status := s.dev.failure(); status != 0 {
		c.AbortWithStatus(status)
		return
	}
	c.Next()
}

func (s *Server) getProperty(c *gin.Context) {
	v, ok := s.dev.property(c.Param("property"))
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) putProperty(c *gin.Context) {
	name := c.Param("property")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<10))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if err := s.dev.write(name, string(body)); err != nil {
		s.log.Warnw("emulator_write_rejected", "property", name, "error", err)
		c.String(statusFor(err), err.Error())
		return
	}
	s.log.Debugw("emulator_property_written", "property", name, "value", string(body))
	c.Status(http.StatusNoContent)
}

func (s *Server) postAction(c *gin.Context) {
	name := c.Param("action")
	if err := s.dev.act(name); err != nil {
		c.String(statusFor(err), err.Error())
		return
	}
	s.log.Debugw("emulator_action", "action", name)
	c.Status(http.StatusNoContent)
}

func (s *Server) getAll(c *gin.Context) {
	c.JSON(http.StatusOK, s.dev.all())
}

func statusFor(err error) int {
	var unknown errUnknown
	if errors.As(err, &unknown) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
