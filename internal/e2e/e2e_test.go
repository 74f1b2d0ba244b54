package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/pyrosafe/fieldops/internal/clock"
	"github.com/pyrosafe/fieldops/internal/config"
	"github.com/pyrosafe/fieldops/internal/conversion"
	customerservice "github.com/pyrosafe/fieldops/internal/customer/service"
	deficiencyservice "github.com/pyrosafe/fieldops/internal/deficiency/service"
	"github.com/pyrosafe/fieldops/internal/events"
	inspectionservice "github.com/pyrosafe/fieldops/internal/inspection/service"
	invoiceservice "github.com/pyrosafe/fieldops/internal/invoice/service"
	jobservice "github.com/pyrosafe/fieldops/internal/job/service"
	"github.com/pyrosafe/fieldops/internal/migration"
	quoteservice "github.com/pyrosafe/fieldops/internal/quote/service"
	"github.com/pyrosafe/fieldops/internal/server"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db      *gorm.DB
	httpSrv *httptest.Server
	baseURL string
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.httpSrv.Close()
	os.Exit(code)
}

func startEnv() (*testEnv, error) {
	dsn := fmt.Sprintf("file:e2e_%d?mode=memory&cache=shared", time.Now().UnixNano())
	dbConn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	if err := migration.Run(dbConn); err != nil {
		return nil, err
	}

	node, err := snowflake.NewNode(30)
	if err != nil {
		return nil, err
	}

	log := zap.NewNop()
	bus := events.NewBus(log)
	sysClock := clock.SystemClock{}
	cfg := config.Config{
		AppName:         "fieldops",
		Environment:     "test",
		DefaultCurrency: "USD",
		QuoteValidDays:  30,
		InvoiceDueDays:  30,
		DefaultTaxBps:   0,
	}

	customers := customerservice.NewService(customerservice.Params{
		DB: dbConn, Log: log, GenID: node,
	})
	inspections := inspectionservice.NewService(inspectionservice.Params{
		DB: dbConn, Log: log, Clock: sysClock, GenID: node,
	})
	deficiencies := deficiencyservice.NewLedger(deficiencyservice.Params{
		DB: dbConn, Log: log, GenID: node,
	})
	quotes := quoteservice.NewEngine(quoteservice.Params{
		DB: dbConn, Log: log, Clock: sysClock, GenID: node, Cfg: cfg,
		Pricing: config.NewStaticPricingPolicyHolder(config.DefaultPricingPolicy()),
		Ledger:  deficiencies,
		Bus:     bus,
	})
	jobs := jobservice.NewService(jobservice.Params{
		DB: dbConn, Log: log, Clock: sysClock, GenID: node, Cfg: cfg, Bus: bus,
	})
	invoices := invoiceservice.NewLedger(invoiceservice.Params{
		DB: dbConn, Log: log, Clock: sysClock, GenID: node, Cfg: cfg, Bus: bus,
	})
	coordinator := conversion.NewCoordinator(conversion.Params{
		DB: dbConn, Log: log,
		Quotes: quotes, Jobs: jobs, Ledger: invoices, Bus: bus,
	})

	engine := server.NewEngine(log, server.NewHTTPMetrics())
	server.NewServer(server.ServerParams{
		Gin:          engine,
		Cfg:          cfg,
		CustomerSvc:  customers,
		Inspections:  inspections,
		Deficiencies: deficiencies,
		Quotes:       quotes,
		Jobs:         jobs,
		Invoices:     invoices,
		Coordinator:  coordinator,
	})

	httpSrv := httptest.NewServer(engine)

	return &testEnv{
		db:      dbConn,
		httpSrv: httpSrv,
		baseURL: httpSrv.URL,
	}, nil
}

func doJSON(t *testing.T, method, reqURL string, payload any) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode json: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, reqURL, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Actor-ID", "e2e-operator")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func decodeData(t *testing.T, body []byte, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode envelope: %v: %s", err, string(body))
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decode data: %v: %s", err, string(envelope.Data))
	}
}

func mustStatus(t *testing.T, resp *http.Response, body []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(body))
	}
}

func TestE2E_HealthCheck(t *testing.T) {
	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

// TestE2E_DeficiencyToPaidInvoice walks the whole document chain over HTTP:
// inspection findings become a quote, the accepted quote becomes a job, the
// completed job becomes an invoice, and payments settle it back onto the job.
func TestE2E_DeficiencyToPaidInvoice(t *testing.T) {
	// Customer and inspection setup.
	var customer struct {
		ID string `json:"id"`
	}
	resp, body := doJSON(t, http.MethodPost, env.baseURL+"/api/customers", map[string]any{
		"name":  "Harborview Medical Plaza",
		"email": "facilities@harborview.example",
	})
	mustStatus(t, resp, body, http.StatusOK)
	decodeData(t, body, &customer)

	var inspection struct {
		ID string `json:"id"`
	}
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/inspections", map[string]any{
		"customer_id":     customer.ID,
		"inspection_type": "annual_fire_alarm",
		"technician_id":   "tech-7",
	})
	mustStatus(t, resp, body, http.StatusOK)
	decodeData(t, body, &inspection)

	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/inspections/"+inspection.ID+"/start", nil)
	mustStatus(t, resp, body, http.StatusOK)

	var deficiency struct {
		ID string `json:"id"`
	}
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/inspections/"+inspection.ID+"/deficiencies", map[string]any{
		"category":            "emergency_lighting",
		"severity":            "major",
		"description":         "Stairwell egress lights fail 90-minute battery test",
		"estimated_cost_low":  30000,
		"estimated_cost_high": 50000,
	})
	mustStatus(t, resp, body, http.StatusOK)
	decodeData(t, body, &deficiency)

	passWithDeficiencies := true
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/inspections/"+inspection.ID+"/complete", map[string]any{
		"pass_with_deficiencies": passWithDeficiencies,
	})
	mustStatus(t, resp, body, http.StatusOK)

	// Findings to quote.
	var quote struct {
		Quote struct {
			ID          string `json:"id"`
			Status      string `json:"status"`
			TotalAmount int64  `json:"total_amount"`
		} `json:"quote"`
		Items []struct {
			UnitPrice int64 `json:"unit_price"`
		} `json:"items"`
	}
	taxRate := 8.25
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/deficiencies/generate-quote", map[string]any{
		"inspection_id":  inspection.ID,
		"deficiency_ids": []string{deficiency.ID},
		"tax_rate":       taxRate,
	})
	mustStatus(t, resp, body, http.StatusOK)
	decodeData(t, body, &quote)
	if len(quote.Items) != 1 {
		t.Fatalf("expected one priced line item, got %d", len(quote.Items))
	}
	// Midpoint of the 300.00-500.00 estimate.
	if quote.Items[0].UnitPrice != 40000 {
		t.Fatalf("expected midpoint pricing 40000, got %d", quote.Items[0].UnitPrice)
	}
	if quote.Quote.TotalAmount != 43300 {
		t.Fatalf("expected total 43300 (400.00 + 8.25%% tax), got %d", quote.Quote.TotalAmount)
	}

	// A held finding cannot be quoted twice.
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/deficiencies/generate-quote", map[string]any{
		"deficiency_ids": []string{deficiency.ID},
	})
	mustStatus(t, resp, body, http.StatusConflict)

	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/quotes/"+quote.Quote.ID+"/send", nil)
	mustStatus(t, resp, body, http.StatusOK)
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/quotes/"+quote.Quote.ID+"/accept", nil)
	mustStatus(t, resp, body, http.StatusOK)

	// Quote to job.
	var job struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		TotalAmount *int64 `json:"total_amount"`
	}
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/quotes/"+quote.Quote.ID+"/convert-to-job", map[string]any{
		"job_type": "emergency_lighting_repair",
		"priority": "high",
	})
	mustStatus(t, resp, body, http.StatusOK)
	decodeData(t, body, &job)
	if job.Status != "approved" {
		t.Fatalf("expected converted job approved, got %s", job.Status)
	}
	if job.TotalAmount == nil || *job.TotalAmount != 43300 {
		t.Fatalf("expected job total copied from quote")
	}

	// Converting twice is a conflict.
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/quotes/"+quote.Quote.ID+"/convert-to-job", map[string]any{})
	mustStatus(t, resp, body, http.StatusConflict)

	// Execute the job.
	for _, action := range []string{"ready", "schedule", "start", "complete"} {
		resp, body = doJSON(t, http.MethodPatch, env.baseURL+"/api/jobs/"+job.ID, map[string]any{
			"action": action,
		})
		mustStatus(t, resp, body, http.StatusOK)
	}

	// The invoice event is reserved for the coordinator.
	resp, body = doJSON(t, http.MethodPatch, env.baseURL+"/api/jobs/"+job.ID, map[string]any{
		"action": "invoice",
	})
	mustStatus(t, resp, body, http.StatusConflict)

	// Job to invoice.
	var invoice struct {
		Invoice struct {
			ID          string `json:"id"`
			Status      string `json:"status"`
			TotalAmount int64  `json:"total_amount"`
		} `json:"invoice"`
	}
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/jobs/"+job.ID+"/invoice", nil)
	mustStatus(t, resp, body, http.StatusOK)
	decodeData(t, body, &invoice)
	if invoice.Invoice.TotalAmount != 43300 {
		t.Fatalf("expected invoice total 43300, got %d", invoice.Invoice.TotalAmount)
	}

	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/invoices/"+invoice.Invoice.ID+"/send", nil)
	mustStatus(t, resp, body, http.StatusOK)

	// Partial then final payment.
	var paymentResp struct {
		Invoice struct {
			Status     string `json:"status"`
			AmountPaid int64  `json:"amount_paid"`
		} `json:"invoice"`
	}
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/payments", map[string]any{
		"invoice_id":     invoice.Invoice.ID,
		"amount":         20000,
		"payment_method": "check",
	})
	mustStatus(t, resp, body, http.StatusOK)
	decodeData(t, body, &paymentResp)
	if paymentResp.Invoice.Status != "partial" {
		t.Fatalf("expected partial after first payment, got %s", paymentResp.Invoice.Status)
	}

	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/payments", map[string]any{
		"invoice_id":     invoice.Invoice.ID,
		"amount":         23300,
		"payment_method": "card",
	})
	mustStatus(t, resp, body, http.StatusOK)
	decodeData(t, body, &paymentResp)
	if paymentResp.Invoice.Status != "paid" {
		t.Fatalf("expected paid after final payment, got %s", paymentResp.Invoice.Status)
	}
	if paymentResp.Invoice.AmountPaid != 43300 {
		t.Fatalf("expected amount_paid 43300, got %d", paymentResp.Invoice.AmountPaid)
	}

	// Settlement cascades onto the job through the event bus.
	var paidJob struct {
		Status string `json:"status"`
	}
	resp, body = doJSON(t, http.MethodGet, env.baseURL+"/api/jobs/"+job.ID, nil)
	mustStatus(t, resp, body, http.StatusOK)
	decodeData(t, body, &paidJob)
	if paidJob.Status != "paid" {
		t.Fatalf("expected job paid after invoice settlement, got %s", paidJob.Status)
	}
}

func TestE2E_ManualSettlementAndValidation(t *testing.T) {
	var customer struct {
		ID string `json:"id"`
	}
	resp, body := doJSON(t, http.MethodPost, env.baseURL+"/api/customers", map[string]any{
		"name":  "Cedar Mill Storage",
		"email": "office@cedarmill.example",
	})
	mustStatus(t, resp, body, http.StatusOK)
	decodeData(t, body, &customer)

	var invoice struct {
		Invoice struct {
			ID string `json:"id"`
		} `json:"invoice"`
	}
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/invoices", map[string]any{
		"customer_id": customer.ID,
		"line_items": []map[string]any{
			{"description": "Extinguisher recharge", "item_type": "service", "quantity": 4, "unit_price": 2500},
		},
	})
	mustStatus(t, resp, body, http.StatusOK)
	decodeData(t, body, &invoice)

	// Only status "paid" can be patched directly.
	resp, body = doJSON(t, http.MethodPatch, env.baseURL+"/api/invoices/"+invoice.Invoice.ID, map[string]any{
		"status": "cancelled",
	})
	mustStatus(t, resp, body, http.StatusBadRequest)

	var settled struct {
		Status     string `json:"status"`
		AmountPaid int64  `json:"amount_paid"`
	}
	resp, body = doJSON(t, http.MethodPatch, env.baseURL+"/api/invoices/"+invoice.Invoice.ID, map[string]any{
		"status": "paid",
		"notes":  "paid by check at front desk",
	})
	mustStatus(t, resp, body, http.StatusOK)
	decodeData(t, body, &settled)
	if settled.Status != "paid" {
		t.Fatalf("expected paid, got %s", settled.Status)
	}
	if settled.AmountPaid != 10000 {
		t.Fatalf("expected amount_paid 10000, got %d", settled.AmountPaid)
	}

	// The override produced a real payment record.
	var payments []struct {
		Method string `json:"payment_method"`
		Amount int64  `json:"amount"`
	}
	resp, body = doJSON(t, http.MethodGet, env.baseURL+"/api/invoices/"+invoice.Invoice.ID+"/payments", nil)
	mustStatus(t, resp, body, http.StatusOK)
	decodeData(t, body, &payments)
	if len(payments) != 1 || payments[0].Method != "manual" {
		t.Fatalf("expected one manual payment, got %+v", payments)
	}

	// Negative payment amounts are rejected.
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/payments", map[string]any{
		"invoice_id":     invoice.Invoice.ID,
		"amount":         -500,
		"payment_method": "card",
	})
	mustStatus(t, resp, body, http.StatusBadRequest)
}
