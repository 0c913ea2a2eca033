package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/config"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/time/rate"
)

type apiError struct {
	Error string `json:"error"`
}

func errorHandler(err error, c echo.Context) {
	code := common.HttpCodeFor(err)
	msg := http.StatusText(code)

	var he *echo.HTTPError
	var uve *common.UserVisibleError
	switch {
	case errors.As(err, &he):
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprintf("%v", he.Message)
		}
	case errors.As(err, &uve):
		msg = uve.Message
	case code != http.StatusInternalServerError:
		msg = err.Error()
	}

	if code >= 500 {
		c.Logger().Error(err)
	}

	if c.Response().Committed {
		return
	}
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		if jsonErr := c.JSON(code, apiError{Error: msg}); jsonErr != nil {
			c.Logger().Error(jsonErr)
		}
		return
	}
	if renderErr := c.Render(code, "error", msg); renderErr != nil {
		c.Logger().Error(renderErr)
	}
}

// NewEcho sets up middleware, templates, static files and routes.
func NewEcho(controller *TilastoController, conf *config.TilastoConfig, serverConf config.ServerRuntimeConfig) (*echo.Echo, error) {
	e := echo.New()
	e.HTTPErrorHandler = errorHandler
	e.HideBanner = true
	if serverConf.AcmeEnabled {
		e.Pre(middleware.HTTPSRedirect())
	}
	e.Pre(middleware.RemoveTrailingSlash())
	e.Pre(echo.MiddlewareFunc(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			url := req.URL
			if req.Host != conf.Hostnames[0] && serverConf.AcmeEnabled {
				url.Host = conf.Hostnames[0]
				slog.Info("redirect to canonical hostname", "original_hostname", req.Host)
				return c.Redirect(http.StatusPermanentRedirect, url.String())
			}
			return next(c)
		}
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	var identifierExtractor middleware.Extractor

	if serverConf.BehindLoadBalancer {
		identifierExtractor = func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		}
	} else {
		identifierExtractor = func(ctx echo.Context) (string, error) {
			return ctx.Request().RemoteAddr, nil
		}
	}

	if serverConf.RateLimit > 0 {
		config := middleware.RateLimiterConfig{
			Skipper: middleware.DefaultSkipper,
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(serverConf.RateLimit),
					Burst:     3 * serverConf.RateLimit,
					ExpiresIn: 3 * time.Minute,
				},
			),
			IdentifierExtractor: identifierExtractor,
			ErrorHandler: func(context echo.Context, err error) error {
				return context.String(http.StatusForbidden, "Forbidden")
			},
			DenyHandler: func(context echo.Context, identifier string, err error) error {
				return context.String(http.StatusTooManyRequests, "Too Many Requests")
			},
		}

		e.Use(middleware.RateLimiterWithConfig(config))
	}

	if serverConf.GzipLevel != 0 {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{Level: serverConf.GzipLevel, MinLength: 512}))
	}

	if conf.TimeoutSeconds != 0 {
		e.Use(middleware.ContextTimeout(time.Duration(conf.TimeoutSeconds) * time.Second))
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogError:     true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogLatency:   conf.LogLatency,
		HandleError:  true, // forwards error to the global error handler, so it can decide appropriate status code
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				logger.LogAttrs(context.Background(), slog.LevelInfo, "REQUEST",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.Int64("latency_ms", v.Latency.Milliseconds()),
					slog.String("remote_ip", v.RemoteIP),
					slog.String("request_id", v.RequestID),
				)
			} else {
				logger.LogAttrs(context.Background(), slog.LevelError, "REQUEST_ERROR",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.String("err", v.Error.Error()),
					slog.String("remote_ip", v.RemoteIP),
					slog.String("request_id", v.RequestID),
					slog.Int64("latency_ms", v.Latency.Milliseconds()),
				)
			}
			return nil
		},
	}))

	staticDir, err := fs.Sub(staticFs, "static")
	if err != nil {
		return nil, err
	}
	staticServerHashFs, err := NewHashFS(staticDir)
	if err != nil {
		return nil, err
	}

	e.Renderer = NewTemplateRenderer(conf, staticServerHashFs)
	e.GET("/static/*", echo.WrapHandler(http.StripPrefix("/static/", staticServerHashFs)))
	controller.RegisterRoutes(e)
	return e, nil
}

func StartServer(controller *TilastoController, conf *config.TilastoConfig, serverConf config.ServerRuntimeConfig) {
	e, err := NewEcho(controller, conf, serverConf)
	if err != nil {
		slog.Error("failed to set up server", "err", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", serverConf.Addr, serverConf.Port)
	certDir := serverConf.CertDir

	if certDir != "" {
		if serverConf.AcmeEnabled {
			slog.Info("using TLS with ACME", "dir", certDir)
			e.AutoTLSManager.HostPolicy = autocert.HostWhitelist(conf.Hostnames...)
			e.AutoTLSManager.Cache = autocert.DirCache(certDir)
			e.Logger.Fatal(e.StartAutoTLS(addr))
		} else {
			slog.Info("using TLS with certDir", "dir", certDir)
			e.Logger.Fatal(e.StartTLS(addr, path.Join(certDir, "fullchain.pem"), path.Join(certDir, "privkey.pem")))
		}
	} else {
		e.Logger.Fatal(e.Start(addr))
	}
}
