package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/platewise/receipt-scan/internal/config"
	"github.com/platewise/receipt-scan/internal/models"
	"github.com/platewise/receipt-scan/internal/services"
)

// newTestApp wires the scan routes against a fake vision API.
func newTestApp(t *testing.T, visionURL string) *fiber.App {
	t.Helper()

	kb, err := services.NewKnowledgeBase()
	if err != nil {
		t.Fatalf("NewKnowledgeBase returned error: %v", err)
	}

	cfg := &config.Config{JWTSecret: "test-secret"}
	vision := services.NewVisionService(visionURL, "test-model", time.Second)
	h := NewScanHandler(cfg, vision, services.NewEstimator(kb), nil)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	api := app.Group("/api")
	receipt := api.Group("/receipt")
	receipt.Post("/scan", h.Scan)
	receipt.Get("/scan", h.ScanInfo)
	return app
}

// newFakeVisionServer answers the messages API with a fixed item array.
func newFakeVisionServer(t *testing.T, itemsJSON string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{
				{"type": "text", "text": itemsJSON},
			},
		})
	}))
}

func decodeScanResponse(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("failed to decode response %s: %v", body, err)
	}
	return payload
}

func TestScanInfo(t *testing.T) {
	app := newTestApp(t, "http://localhost:0")

	req := httptest.NewRequest(http.MethodGet, "/api/receipt/scan", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test returned error: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeScanResponse(t, resp)
	if payload["ok"] != true {
		t.Fatalf("expected ok:true, got %v", payload)
	}
	if payload["method"] != "POST /api/receipt/scan" {
		t.Fatalf("unexpected method hint: %v", payload["method"])
	}
}

func TestScanMissingImage(t *testing.T) {
	app := newTestApp(t, "http://localhost:0")

	req := httptest.NewRequest(http.MethodPost, "/api/receipt/scan", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test returned error: %v", err)
	}

	// Missing input is reported through the success flag, never a 4xx.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeScanResponse(t, resp)
	if payload["success"] != false {
		t.Fatalf("expected success:false, got %v", payload)
	}
	errMsg, _ := payload["error"].(string)
	if !strings.Contains(errMsg, "no receipt image") {
		t.Fatalf("expected missing-image message, got %q", errMsg)
	}
}

func TestScanEmptyBody(t *testing.T) {
	app := newTestApp(t, "http://localhost:0")

	req := httptest.NewRequest(http.MethodPost, "/api/receipt/scan", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test returned error: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeScanResponse(t, resp)
	if payload["success"] != false {
		t.Fatalf("expected success:false, got %v", payload)
	}
}

func TestScanMultipartUpload(t *testing.T) {
	t.Setenv(services.VisionAPIKeyEnv, "test-key")

	itemsJSON := `[
		{"name":"Chicken Breast Fillets","quantity":1000,"unit":"g","price":12.99,"category":"meat"},
		{"name":"Whole Milk","quantity":2,"unit":"l","price":3.10,"category":"dairy"},
		{"name":"Free Range Eggs","quantity":12,"unit":"each","price":4.50,"category":"dairy"}
	]`
	server := newFakeVisionServer(t, itemsJSON)
	defer server.Close()

	app := newTestApp(t, server.URL)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="receipt"; filename="receipt.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart returned error: %v", err)
	}
	if _, err := part.Write([]byte("fake-jpeg-bytes")); err != nil {
		t.Fatalf("part write error: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/receipt/scan", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test returned error: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeScanResponse(t, resp)
	if payload["success"] != true {
		t.Fatalf("expected success:true, got %v", payload)
	}
	if payload["itemCount"] != float64(3) {
		t.Fatalf("expected itemCount 3, got %v", payload["itemCount"])
	}

	// Chicken 1000g (x10), milk 2l (x20 per-100ml), eggs x12:
	// protein 310+60+72, carbs 0+100+12, fat 40+60+60, kcal 1650+1200+900.
	totals, _ := payload["weeklyTotals"].(map[string]interface{})
	if totals["protein"] != float64(442) || totals["calories"] != float64(3750) {
		t.Fatalf("unexpected totals: %v", totals)
	}

	// protein 442 -> +25, calories 3750 -> 0, fat fraction 0.384 -> +15: B
	if payload["grade"] != "B" {
		t.Fatalf("expected grade B, got %v", payload["grade"])
	}

	byCategory, _ := payload["byCategory"].(map[string]interface{})
	if len(byCategory) != 2 {
		t.Fatalf("expected 2 category buckets, got %v", byCategory)
	}
	meat, _ := byCategory["meat"].([]interface{})
	dairy, _ := byCategory["dairy"].([]interface{})
	if len(meat) != 1 || len(dairy) != 2 {
		t.Fatalf("expected meat:1 dairy:2, got meat:%d dairy:%d", len(meat), len(dairy))
	}

	shareText, _ := payload["shareText"].(string)
	if !strings.Contains(shareText, "Chicken Breast Fillets") {
		t.Fatalf("expected share text to mention first item, got %q", shareText)
	}
}

func TestScanJSONDataURL(t *testing.T) {
	t.Setenv(services.VisionAPIKeyEnv, "test-key")

	server := newFakeVisionServer(t, `[{"name":"Bananas","quantity":6,"unit":"each","price":2.40,"category":"fruit"}]`)
	defer server.Close()

	app := newTestApp(t, server.URL)

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("fake-png-bytes"))
	reqBody, _ := json.Marshal(map[string]string{"image": dataURL})

	req := httptest.NewRequest(http.MethodPost, "/api/receipt/scan", bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test returned error: %v", err)
	}

	payload := decodeScanResponse(t, resp)
	if payload["success"] != true {
		t.Fatalf("expected success:true, got %v", payload)
	}
	if payload["itemCount"] != float64(1) {
		t.Fatalf("expected itemCount 1, got %v", payload["itemCount"])
	}
}

func TestScanInvalidBase64(t *testing.T) {
	app := newTestApp(t, "http://localhost:0")

	reqBody, _ := json.Marshal(map[string]string{"image": "not-valid-base64!!!"})
	req := httptest.NewRequest(http.MethodPost, "/api/receipt/scan", bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test returned error: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeScanResponse(t, resp)
	if payload["success"] != false {
		t.Fatalf("expected success:false, got %v", payload)
	}
}

func TestScanUpstreamErrorPassesThrough(t *testing.T) {
	t.Setenv(services.VisionAPIKeyEnv, "test-key")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"type": "authentication_error", "message": "invalid x-api-key"},
		})
	}))
	defer server.Close()

	app := newTestApp(t, server.URL)

	reqBody, _ := json.Marshal(map[string]string{
		"image": base64.StdEncoding.EncodeToString([]byte("fake-bytes")),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/receipt/scan", bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test returned error: %v", err)
	}

	// Processing failures still answer 200 with the upstream's message.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeScanResponse(t, resp)
	if payload["success"] != false {
		t.Fatalf("expected success:false, got %v", payload)
	}
	if payload["error"] != "invalid x-api-key" {
		t.Fatalf("expected verbatim upstream message, got %v", payload["error"])
	}
}

func TestGroupByCategory(t *testing.T) {
	items := []models.EnrichedItem{
		{ReceiptItem: models.ReceiptItem{Name: "Steak", Category: models.CategoryMeat}},
		{ReceiptItem: models.ReceiptItem{Name: "Bacon", Category: models.CategoryMeat}},
		{ReceiptItem: models.ReceiptItem{Name: "Cheese", Category: models.CategoryDairy}},
	}

	grouped := groupByCategory(items)
	if len(grouped) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(grouped))
	}
	if len(grouped[models.CategoryMeat]) != 2 || len(grouped[models.CategoryDairy]) != 1 {
		t.Fatalf("unexpected grouping: %+v", grouped)
	}
	if grouped[models.CategoryMeat][0].Name != "Steak" {
		t.Fatalf("grouping must preserve full records, got %+v", grouped[models.CategoryMeat][0])
	}
}
