// Package webserver hosts the echo HTTP server and the route registry the
// api packages register into.
package webserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/souqlab/souq/internal/app"
)

const (
	ApiPrefix     = "/api/v1"
	appContextKey = "appctx"
)

type WebServer struct {
	root   *echo.Echo
	appCtx app.AppContext
}

// NewWebServer builds the echo instance and installs every registered route
func NewWebServer(appCtx app.AppContext) *WebServer {
	cfg := appCtx.Config()
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.System.Debug
	e.Validator = NewValidator()
	e.JSONSerializer = JSONSerializer{}
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	e.Use(requestLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if cfg.Web.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.Web.BodyLimit))
	}
	e.Use(httpMetrics())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(appContextKey, appCtx)
			return next(c)
		}
	})

	e.GET("/metrics", echoprometheus.NewHandler())

	api := e.Group(ApiPrefix)
	pub := api.Group("", OptionalAuth(cfg.Web.Secret))
	priv := api.Group("", RequireAuth(cfg.Web.Secret))
	for _, r := range routes {
		g := priv
		if r.public {
			g = pub
		}
		g.Add(r.method, r.path, r.handler)
	}

	return &WebServer{root: e, appCtx: appCtx}
}

// Echo exposes the underlying router, mostly for tests
func (s *WebServer) Echo() *echo.Echo {
	return s.root
}

// Start serves until ctx is canceled
func (s *WebServer) Start(ctx context.Context) error {
	cfg := s.appCtx.Config()
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.root.Shutdown(sctx); err != nil {
			zap.L().Error("web server shutdown", zap.Error(err))
		}
	}()
	zap.S().Infof("web server listening on %s", addr)
	err := s.root.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// GetAppContext returns the application bound to the request
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(appContextKey).(app.AppContext)
}

// GetDB returns the request scoped database handle
func GetDB(c echo.Context) *gorm.DB {
	return GetAppContext(c).DB().WithContext(c.Request().Context())
}

var (
	metricsOnce sync.Once
	metricsMW   echo.MiddlewareFunc
)

// httpMetrics registers the request collectors once per process; every
// server built afterwards shares them.
func httpMetrics() echo.MiddlewareFunc {
	metricsOnce.Do(func() {
		metricsMW = echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Subsystem: "souq",
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/metrics"
			},
		})
	})
	return metricsMW
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			switch {
			case v.Error != nil && v.Status >= http.StatusInternalServerError:
				zap.L().Error("request error", append(fields, zap.Error(v.Error))...)
			case v.Error != nil:
				zap.L().Info("request error", append(fields, zap.Error(v.Error))...)
			default:
				zap.L().Debug("request", fields...)
			}
			return nil
		},
	})
}

// errorHandler renders framework errors with the same {"error": ...} body
// the handlers use.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	} else {
		zap.L().Error("unhandled error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": msg})
}
