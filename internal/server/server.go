package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pyrosafe/fieldops/internal/config"
	"github.com/pyrosafe/fieldops/internal/conversion"
	"github.com/pyrosafe/fieldops/internal/customer"
	customerdomain "github.com/pyrosafe/fieldops/internal/customer/domain"
	deficiencydomain "github.com/pyrosafe/fieldops/internal/deficiency/domain"
	"github.com/pyrosafe/fieldops/internal/events"
	"github.com/pyrosafe/fieldops/internal/inspection"
	inspectiondomain "github.com/pyrosafe/fieldops/internal/inspection/domain"
	"github.com/pyrosafe/fieldops/internal/invoice"
	invoicedomain "github.com/pyrosafe/fieldops/internal/invoice/domain"
	"github.com/pyrosafe/fieldops/internal/job"
	jobdomain "github.com/pyrosafe/fieldops/internal/job/domain"
	"github.com/pyrosafe/fieldops/internal/notify"
	"github.com/pyrosafe/fieldops/internal/providers/email"
	"github.com/pyrosafe/fieldops/internal/providers/pdf"
	"github.com/pyrosafe/fieldops/internal/quote"
	quotedomain "github.com/pyrosafe/fieldops/internal/quote/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	config.Module,
	events.Module,
	email.Module,
	pdf.Module,
	customer.Module,
	inspection.Module,
	quote.Module,
	job.Module,
	invoice.Module,
	conversion.Module,
	notify.Module,
	fx.Provide(NewHTTPMetrics),
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(MetricsMiddleware(httpMetrics))
	r.Use(ActorMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, httpMetrics *HTTPMetrics) *gin.Engine {
	return NewEngine(log, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
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
	engine       *gin.Engine
	cfg          config.Config
	customerSvc  customerdomain.Service
	inspections  inspectiondomain.Service
	deficiencies deficiencydomain.Ledger
	quotes       quotedomain.Engine
	jobs         jobdomain.Service
	invoices     invoicedomain.Ledger
	coordinator  *conversion.Coordinator
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	CustomerSvc  customerdomain.Service
	Inspections  inspectiondomain.Service
	Deficiencies deficiencydomain.Ledger
	Quotes       quotedomain.Engine
	Jobs         jobdomain.Service
	Invoices     invoicedomain.Ledger
	Coordinator  *conversion.Coordinator
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		customerSvc:  p.CustomerSvc,
		inspections:  p.Inspections,
		deficiencies: p.Deficiencies,
		quotes:       p.Quotes,
		jobs:         p.Jobs,
		invoices:     p.Invoices,
		coordinator:  p.Coordinator,
	}

	s.registerAPIRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Customers --------
	api.GET("/customers", s.ListCustomers)
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers/:id", s.GetCustomerByID)
	api.GET("/customers/:id/sites", s.ListCustomerSites)
	api.POST("/customers/:id/sites", s.CreateCustomerSite)

	// -------- Inspections --------
	api.GET("/inspections", s.ListInspections)
	api.POST("/inspections", s.CreateInspection)
	api.GET("/inspections/:id", s.GetInspectionByID)
	api.DELETE("/inspections/:id", s.DeleteInspection)
	api.POST("/inspections/:id/start", s.StartInspection)
	api.POST("/inspections/:id/complete", s.CompleteInspection)
	api.POST("/inspections/:id/cancel", s.CancelInspection)
	api.GET("/inspections/:id/checklist", s.ListInspectionChecklist)
	api.POST("/inspections/:id/checklist", s.RecordInspectionChecklist)
	api.GET("/inspections/:id/deficiencies", s.ListInspectionDeficiencies)
	api.POST("/inspections/:id/deficiencies", s.RecordDeficiency)

	// -------- Deficiencies --------
	api.GET("/deficiencies/:id", s.GetDeficiencyByID)
	api.POST("/deficiencies/:id/transition", s.TransitionDeficiency)
	api.POST("/deficiencies/generate-quote", s.GenerateQuoteFromDeficiencies)

	// -------- Quotes --------
	api.GET("/quotes", s.ListQuotes)
	api.POST("/quotes", s.CreateQuote)
	api.GET("/quotes/:id", s.GetQuoteByID)
	api.POST("/quotes/:id/items", s.AddQuoteLineItem)
	api.PATCH("/quotes/:id/items/:itemId", s.UpdateQuoteLineItem)
	api.DELETE("/quotes/:id/items/:itemId", s.RemoveQuoteLineItem)
	api.POST("/quotes/:id/send", s.SendQuote)
	api.POST("/quotes/:id/view", s.MarkQuoteViewed)
	api.POST("/quotes/:id/accept", s.AcceptQuote)
	api.POST("/quotes/:id/decline", s.DeclineQuote)
	api.POST("/quotes/:id/convert-to-job", s.ConvertQuoteToJob)

	// -------- Jobs --------
	api.GET("/jobs", s.ListJobs)
	api.POST("/jobs", s.CreateJob)
	api.GET("/jobs/:id", s.GetJobByID)
	api.PATCH("/jobs/:id", s.TransitionJob)
	api.GET("/jobs/:id/assignments", s.ListJobAssignments)
	api.POST("/jobs/:id/assignments", s.AssignTechnician)
	api.DELETE("/jobs/:id/assignments", s.UnassignTechnician)
	api.GET("/jobs/:id/notes", s.ListJobNotes)
	api.POST("/jobs/:id/notes", s.AddJobNote)
	api.GET("/jobs/:id/events", s.ListJobEvents)
	api.POST("/jobs/:id/invoice", s.CreateInvoiceFromJob)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.PATCH("/invoices/:id", s.UpdateInvoice)
	api.POST("/invoices/:id/send", s.SendInvoice)
	api.POST("/invoices/:id/view", s.MarkInvoiceViewed)
	api.POST("/invoices/:id/void", s.VoidInvoice)
	api.POST("/invoices/:id/refund", s.RefundInvoice)
	api.GET("/invoices/:id/payments", s.ListInvoicePayments)

	// -------- Payments --------
	api.POST("/payments", s.RecordPayment)
}
