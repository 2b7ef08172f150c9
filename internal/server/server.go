package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/rentbill/internal/audit/domain"
	"github.com/smallbiznis/rentbill/internal/config"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	obslogger "github.com/smallbiznis/rentbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rentbill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/rentbill/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/rentbill/internal/payment/domain"
	taxdomain "github.com/smallbiznis/rentbill/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log.Named("http"), classifyErrorForLog))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(p EngineParams) *gin.Engine {
	if p.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(p.Log, p.HTTPMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	billing    *config.BillingConfigHolder
	invoiceSvc invoicedomain.Service
	paymentSvc paymentdomain.Service
	auditTrail auditdomain.Trail
	taxCalc    taxdomain.Calculator
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Billing    *config.BillingConfigHolder
	InvoiceSvc invoicedomain.Service
	PaymentSvc paymentdomain.Service
	AuditTrail auditdomain.Trail
	TaxCalc    taxdomain.Calculator
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		billing:    p.Billing,
		invoiceSvc: p.InvoiceSvc,
		paymentSvc: p.PaymentSvc,
		auditTrail: p.AuditTrail,
		taxCalc:    p.TaxCalc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")
	api.Use(Identity())

	// -------- Orders --------
	api.POST("/orders/:id/invoice", s.CreateInvoiceForOrder)
	api.POST("/orders/:id/invoice/retry", s.RetryInvoiceForOrder)
	api.GET("/orders/:id/invoice", s.GetInvoiceByOrder)
	api.GET("/orders/:id/invoice/audit", s.GetInvoiceAuditTrail)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.GET("/invoices/:id/lines", s.ListInvoiceLineItems)
	api.GET("/invoices/:id/payments", s.ListInvoicePayments)
	api.POST("/invoices/:id/payments", s.RecordPayment)

	// -------- Payments --------
	api.DELETE("/payments/:id", s.DeletePayment)

	// -------- Outlets --------
	api.GET("/outlets/:id/invoices/fallback", s.ListFallbackInvoices)

	// -------- Tax --------
	api.POST("/tax/compute", s.ComputeTax)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
