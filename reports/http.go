package reports

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reusee/botrun/frames"
	"github.com/reusee/botrun/logs"
)

// NewHandler serves the aggregate read-only:
//
//	GET /healthz
//	GET /instances
//	GET /instances/:id
//	GET /global_state
func NewHandler(source Source, logger logs.Logger) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), logRequests(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/instances", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"instances": sorted(source.Snapshots())})
	})

	router.GET("/instances/:id", func(c *gin.Context) {
		r, ok := source.Snapshots()[c.Param("id")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown instance"})
			return
		}
		c.JSON(http.StatusOK, sanitize(r))
	})

	router.GET("/global_state", func(c *gin.Context) {
		bs, err := frames.Encode(GlobalState(source))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json", bs)
	})

	return router
}

func logRequests(logger logs.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.DebugContext(c.Request.Context(), "http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// Serve runs the status server on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, logger logs.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, handler, logger)
}

func ServeListener(ctx context.Context, ln net.Listener, handler http.Handler, logger logs.Logger) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: time.Second * 10,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second*5)
		defer cancel()
		server.Shutdown(shutdownCtx)
	})
	defer stop()
	logger.InfoContext(ctx, "report server", "addr", ln.Addr().String())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
