package handlers

import (
	"context"
	"encoding/base64"
	"io"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/platewise/receipt-scan/internal/config"
	"github.com/platewise/receipt-scan/internal/middleware"
	"github.com/platewise/receipt-scan/internal/models"
	"github.com/platewise/receipt-scan/internal/services"
)

const maxImageSize = 10 * 1024 * 1024 // 10MB

// ScanHandler handles receipt scan endpoints
type ScanHandler struct {
	cfg       *config.Config
	vision    *services.VisionService
	estimator *services.Estimator
	archive   *services.ArchiveService // nil when no archive is configured
}

// NewScanHandler creates a new scan handler. archive may be nil.
func NewScanHandler(
	cfg *config.Config,
	vision *services.VisionService,
	estimator *services.Estimator,
	archive *services.ArchiveService,
) *ScanHandler {
	return &ScanHandler{
		cfg:       cfg,
		vision:    vision,
		estimator: estimator,
		archive:   archive,
	}
}

// scanRequest is the JSON body form of a scan request. Image holds either
// raw base64 or a data URL.
type scanRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
}

// scanResponse flattens the scan result alongside the success flag.
type scanResponse struct {
	Success bool `json:"success"`
	models.ScanResult
}

// Scan processes an uploaded receipt image into nutrition estimates.
// It accepts a multipart upload (field "receipt") or a JSON body with a
// base64/data-URL image.
func (h *ScanHandler) Scan(c *fiber.Ctx) error {
	imageBytes, mimeType, errMsg := h.readImage(c)
	if errMsg != "" {
		return ScanFailure(c, errMsg)
	}

	items, err := h.vision.Extract(c.Context(), imageBytes, mimeType)
	if err != nil {
		log.Printf("Receipt scan error: user=%d: %v", middleware.GetUserID(c), err)
		return ScanFailure(c, err.Error())
	}

	enriched := make([]models.EnrichedItem, 0, len(items))
	for _, item := range items {
		enriched = append(enriched, models.EnrichedItem{
			ReceiptItem: item,
			Nutrition:   h.estimator.Estimate(item.Name, item.Quantity, item.Unit),
		})
	}

	totals := services.Aggregate(enriched)
	grade := services.Grade(totals)

	result := models.ScanResult{
		Items:        enriched,
		ByCategory:   groupByCategory(enriched),
		WeeklyTotals: totals,
		Grade:        grade,
		ShareText:    services.ShareText(enriched, totals, grade),
		ItemCount:    len(enriched),
	}

	// Best-effort image archival; never blocks or fails the scan.
	if h.archive != nil {
		go func(data []byte, contentType string) {
			if _, err := h.archive.Archive(context.Background(), data, contentType); err != nil {
				log.Printf("Warning: Failed to archive receipt image: %v", err)
			}
		}(imageBytes, mimeType)
	}

	return c.JSON(scanResponse{Success: true, ScanResult: result})
}

// ScanInfo answers GET on the scan path with a capability hint.
func (h *ScanHandler) ScanInfo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok":     true,
		"method": "POST /api/receipt/scan",
	})
}

// readImage pulls the receipt image out of either accepted request form.
// A non-empty errMsg means the request carried no usable image; that is
// reported before any network call is made.
func (h *ScanHandler) readImage(c *fiber.Ctx) (imageBytes []byte, mimeType string, errMsg string) {
	if file, err := c.FormFile("receipt"); err == nil {
		contentType := file.Header.Get("Content-Type")
		if !isValidImageType(contentType) {
			return nil, "", "invalid image type. Supported: JPEG, PNG, WebP"
		}
		if file.Size > maxImageSize {
			return nil, "", "file too large. Maximum size is 10MB"
		}

		src, err := file.Open()
		if err != nil {
			return nil, "", "failed to read uploaded file"
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			return nil, "", "failed to read uploaded file"
		}
		return data, contentType, ""
	}

	var req scanRequest
	if err := c.BodyParser(&req); err != nil || req.Image == "" {
		return nil, "", "no receipt image provided. Upload a file as \"receipt\" or send a base64 \"image\" field"
	}

	encoded := req.Image
	mimeType = req.MimeType

	// Data URLs carry their own MIME type: data:<mime>;base64,<data>
	if strings.HasPrefix(encoded, "data:") {
		idx := strings.Index(encoded, ";base64,")
		if idx == -1 {
			return nil, "", "unsupported data URL format"
		}
		mimeType = encoded[len("data:"):idx]
		encoded = encoded[idx+len(";base64,"):]
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", "invalid base64 image data"
	}
	return data, mimeType, ""
}

// groupByCategory buckets enriched items by their extracted category,
// preserving each item's full record.
func groupByCategory(items []models.EnrichedItem) map[models.Category][]models.EnrichedItem {
	grouped := make(map[models.Category][]models.EnrichedItem)
	for _, item := range items {
		grouped[item.Category] = append(grouped[item.Category], item)
	}
	return grouped
}

// isValidImageType checks if the content type is a valid image
func isValidImageType(contentType string) bool {
	validTypes := []string{
		"image/jpeg",
		"image/jpg",
		"image/png",
		"image/webp",
	}

	for _, t := range validTypes {
		if strings.EqualFold(contentType, t) {
			return true
		}
	}
	return false
}
