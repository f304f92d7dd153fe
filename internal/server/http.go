package server

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aweris/largefiles/internal/wire"
)

// Handler exposes Dispatch over HTTP: "GET /?cmd=<name>&<args>" for plain
// commands and POST with the payload as body for putlfile. Listening and
// authentication are up to the caller.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())
	r.GET("/", s.serve)
	r.POST("/", s.serve)
	return r
}

func (s *Server) serve(c *gin.Context) {
	query := c.Request.URL.Query()
	cmd := query.Get("cmd")

	names := make([]string, 0, len(query))
	for name := range query {
		if name != "cmd" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	args := make([]wire.Arg, 0, len(names))
	for _, name := range names {
		args = append(args, wire.Arg{Name: name, Value: query.Get(name)})
	}

	var body []byte
	if c.Request.Method == http.MethodPost {
		var err error
		if body, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBlob)); err != nil {
			_ = c.Error(err)
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			c.String(status, "read body: %v", err)
			return
		}
	}

	reply, err := s.Dispatch(c.Request.Context(), cmd, args, body)
	if err != nil {
		_ = c.Error(err)
		var ce *wire.CommandError
		if errors.As(err, &ce) {
			c.Header(wire.HeaderCode, strconv.Itoa(ce.Code))
			c.String(http.StatusUnprocessableEntity, "%s", ce.Message)
			return
		}
		c.String(http.StatusInternalServerError, "%s", err.Error())
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", reply)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("cmd", c.Query("cmd")),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= 500:
			s.log.Error("request", fields...)
		case c.Writer.Status() >= 400:
			s.log.Warn("request", fields...)
		default:
			s.log.Debug("request", fields...)
		}
	}
}
