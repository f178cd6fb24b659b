package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"refwallet/config"
	"refwallet/observability"
	"refwallet/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators the HTTP adapter calls into
type Dependencies struct {
	Users     service.UserService
	Referrals service.ReferralService
	Wallets   service.WalletService
	Queries   service.QueryService
	Metrics   *observability.MetricsProvider
	Store     Pinger
}

// Server is the HTTP adapter over the referral and wallet services
type Server struct {
	cfg  *config.Config
	deps Dependencies
	http *http.Server
}

// New creates a server and registers its routes
func New(cfg *config.Config, deps Dependencies) *Server {
	s := &Server{cfg: cfg, deps: deps}
	s.http = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the gin engine with middleware and routes
func (s *Server) Router() *gin.Engine {
	if s.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(accessLog(s.deps.Metrics))

	corsCfg := cors.Config{
		AllowOrigins:  s.cfg.CORSOrigins(),
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 || (len(corsCfg.AllowOrigins) == 1 && corsCfg.AllowOrigins[0] == "*") {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", s.health)

	r.POST("/users", s.registerUser)
	r.POST("/change_referral_code", s.changeReferralCode)
	r.POST("/apply_referral", s.applyReferral)
	r.POST("/redeem_coins", s.redeemCoins)
	r.POST("/check_referral_code", s.checkReferralCode)

	r.GET("/wallet/:email", s.getWallet)
	r.GET("/wallet/:email/history", s.getWalletHistory)
	r.GET("/referrals/:email", s.getReferrals)

	return r
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	log.WithField("addr", s.cfg.HTTPAddr).Info("HTTP server starting")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
