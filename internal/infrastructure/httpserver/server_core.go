package httpserver

import (
	"net"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/wiki-contributions/internal/core/ports"
	customMiddleware "github.com/avatarctic/wiki-contributions/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	TLSCertFile       string
	TLSKeyFile        string
	AllowedOrigins    []string
	Environment       string
	AdminAPIToken     string
	TrustedProxies    []string
	RequestsPerSecond float64
	RequestBurst      int
}

type ServerDeps struct {
	VerificationService ports.VerificationService
	ContributionService ports.ContributionService
	AuditService        ports.AuditService
	HealthCheckers      []ports.HealthChecker
}

type Server struct {
	echo            *echo.Echo
	config          *ServerConfig
	logger          *logrus.Logger
	verificationSvc ports.VerificationService
	contributionSvc ports.ContributionService
	auditSvc        ports.AuditService
	middleware      *customMiddleware.MiddlewareCollection
	healthCheckers  []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewRequestValidator()
	e.IPExtractor = ipExtractor(serverConfig.TrustedProxies, logger)

	server := &Server{
		echo:            e,
		config:          serverConfig,
		logger:          logger,
		verificationSvc: deps.VerificationService,
		contributionSvc: deps.ContributionService,
		auditSvc:        deps.AuditService,
		healthCheckers:  deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			logger,
			serverConfig.AdminAPIToken,
			serverConfig.RequestsPerSecond,
			serverConfig.RequestBurst,
			GetRequestsTotal(),
			GetRequestDuration(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// ipExtractor keeps client identity on the socket peer unless the request
// arrived through one of the trusted proxy ranges, in which case the first
// untrusted hop of X-Forwarded-For is used.
func ipExtractor(cidrs []string, logger *logrus.Logger) echo.IPExtractor {
	var opts []echo.TrustOption
	for _, cidr := range cidrs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			if logger != nil {
				logger.WithField("cidr", cidr).Warn("Ignoring invalid trusted proxy range")
			}
			continue
		}
		opts = append(opts, echo.TrustIPRange(ipnet))
	}
	if len(opts) == 0 {
		return echo.ExtractIPDirect()
	}
	opts = append([]echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}, opts...)
	return echo.ExtractIPFromXFFHeader(opts...)
}
