package keygate

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/keygate/keygate/api/adminapi"
	"github.com/keygate/keygate/internal/metrics"
	"github.com/keygate/keygate/service"
	"github.com/keygate/keygate/storage/model"
)

// Default paths
const (
	DefaultLoginPath   = "/api/login"
	DefaultMetricsPath = "/metrics"
	AdminAPIPath       = "/api/v1/admin"
	JWKSPath           = "/.well-known/jwks.json"
)

// FiberServerConfig is the fiber.Config that is used to init the http fiber.App
var FiberServerConfig = fiber.Config{
	ReadTimeout:    3 * time.Second,
	WriteTimeout:   20 * time.Second,
	IdleTimeout:    150 * time.Second,
	ReadBufferSize: 8192,
	ErrorHandler:   handleError,
	Network:        "tcp",
}

// Options selects the endpoints served besides the login endpoint
type Options struct {
	// LoginPath is the path of the client login endpoint
	LoginPath string
	// AccessLog receives the access log; nil disables it
	AccessLog io.Writer

	AdminEnabled      bool
	AdminUsersEnabled bool
	// AdminPort, when > 0, serves the admin API on its own port
	AdminPort int
	// ServerURL is the public url of the server, used in the api docs
	ServerURL string

	MetricsEnabled bool
	MetricsPath    string
}

// KeyGate is the license key server
type KeyGate struct {
	server     *fiber.App
	admin      *fiber.App
	serverConf ServerConf
	opts       Options
	svc        *service.Service
}

func newFiberApp(conf ServerConf, accessLog io.Writer) *fiber.App {
	fiberConf := FiberServerConfig
	if tps := conf.TrustedProxies; len(tps) > 0 {
		fiberConf.TrustedProxies = tps
		fiberConf.EnableTrustedProxyCheck = true
	}
	fiberConf.ProxyHeader = conf.ForwardedIPHeader
	app := fiber.New(fiberConf)
	app.Use(recover.New())
	app.Use(compress.New())
	if accessLog != nil {
		app.Use(logger.New(logger.Config{Output: accessLog}))
	}
	app.Use(requestid.New())
	return app
}

// NewKeyGate creates a new KeyGate serving svc
func NewKeyGate(serverConf ServerConf, svc *service.Service, storages model.Backends, opts Options) (
	*KeyGate, error,
) {
	if opts.LoginPath == "" {
		opts.LoginPath = DefaultLoginPath
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = DefaultMetricsPath
	}
	server := newFiberApp(serverConf, opts.AccessLog)
	kg := &KeyGate{
		server:     server,
		serverConf: serverConf,
		opts:       opts,
		svc:        svc,
	}

	server.Post(opts.LoginPath, kg.handleLogin)
	if svc.Receipts() != nil {
		server.Get(JWKSPath, kg.handleJWKS)
	}
	if opts.MetricsEnabled {
		server.Get(opts.MetricsPath, adaptor.HTTPHandler(metrics.Handler()))
	}

	if opts.AdminEnabled {
		adminServer := server
		if opts.AdminPort > 0 && opts.AdminPort != serverConf.Port {
			kg.admin = newFiberApp(serverConf, opts.AccessLog)
			adminServer = kg.admin
		}
		if err := adminapi.Register(
			adminServer.Group(AdminAPIPath), opts.ServerURL, svc, storages,
			&adminapi.Options{
				UsersEnabled: opts.AdminUsersEnabled,
				Port:         opts.AdminPort,
			},
		); err != nil {
			return nil, err
		}
	}
	return kg, nil
}

// HttpHandlerFunc returns an http.HandlerFunc for serving all the necessary endpoints
func (kg *KeyGate) HttpHandlerFunc() http.HandlerFunc {
	return adaptor.FiberApp(kg.server)
}

// Listen starts an http server at the specific address for serving all the
// necessary endpoints
func (kg *KeyGate) Listen(addr string) error {
	return kg.server.Listen(addr)
}

// Shutdown gracefully stops all servers
func (kg *KeyGate) Shutdown() error {
	if kg.admin != nil {
		if err := kg.admin.Shutdown(); err != nil {
			return err
		}
	}
	return kg.server.Shutdown()
}

// Start serves until a server fails
func (kg *KeyGate) Start() {
	conf := kg.serverConf
	if kg.admin != nil {
		go func() {
			adminAddr := addr(conf.IPListen, kg.opts.AdminPort)
			log.WithField("addr", adminAddr).Info("starting admin api server")
			var err error
			if conf.TLS.Enabled {
				err = kg.admin.ListenTLS(adminAddr, conf.TLS.Cert, conf.TLS.Key)
			} else {
				err = kg.admin.Listen(adminAddr)
			}
			log.WithError(err).Fatal("admin api server stopped")
		}()
	}
	if !conf.TLS.Enabled {
		log.WithField("addr", conf.Addr()).Info("TLS is disabled starting http server")
		log.WithError(kg.server.Listen(conf.Addr())).Fatal()
	}
	if conf.TLS.RedirectHTTP {
		httpServer := fiber.New(FiberServerConfig)
		httpServer.All(
			"*", func(ctx *fiber.Ctx) error {
				//goland:noinspection HttpUrlsUsage
				return ctx.Redirect(
					strings.Replace(ctx.Request().URI().String(), "http://", "https://", 1),
					fiber.StatusPermanentRedirect,
				)
			},
		)
		log.Info("TLS and http redirect enabled, starting redirect server on port 80")
		go func() {
			log.WithError(httpServer.Listen(addr(conf.IPListen, 80))).Fatal()
		}()
	}
	log.WithField("addr", conf.Addr()).Info("TLS enabled, starting https server")
	log.WithError(kg.server.ListenTLS(conf.Addr(), conf.TLS.Cert, conf.TLS.Key)).Fatal()
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// handleError renders errors that escape a handler, e.g. unknown routes
func handleError(ctx *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := "internal error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		msg = fe.Message
	} else {
		log.WithError(err).WithField("path", ctx.Path()).Error("request failed")
	}
	return ctx.Status(status).JSON(
		errorResponse{
			Success: false,
			Error:   msg,
		},
	)
}
