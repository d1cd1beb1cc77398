package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/tphakala/transformer-inspect/internal/annotation"
	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/logger"
)

// ErrUnavailable marks any failure to get a usable answer from the service.
var ErrUnavailable = errors.NewStd("detection service unavailable")

const (
	detectPath = "/detect-thermal-anomalies"
	healthPath = "/health"

	// maxResponseSize caps the decoded body; results carry a base64 preview image.
	maxResponseSize = 32 << 20
	maxErrorBody    = 4 << 10
)

// Detection is one box as reported by the service.
type Detection struct {
	ClassID    int       `json:"class_id"`
	ClassName  string    `json:"class_name"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
	Area       int       `json:"area,omitempty"`
}

// Result is the detection service response. Fields not used here are ignored.
type Result struct {
	Success             bool        `json:"success"`
	Detections          []Detection `json:"detections"`
	TotalDetections     int         `json:"total_detections"`
	SeverityLevel       string      `json:"severity_level"`
	SeverityScore       float64     `json:"severity_score"`
	ConfidenceThreshold float64     `json:"confidence_threshold"`
	ProcessingTime      float64     `json:"processing_time"`
	ImageName           string      `json:"image_name"`
}

// Candidates converts detections with a four-value bbox. Others are skipped
// and counted in the second return value.
func (r *Result) Candidates() (candidates []annotation.Candidate, malformed int) {
	candidates = make([]annotation.Candidate, 0, len(r.Detections))
	for _, d := range r.Detections {
		if len(d.BBox) != 4 {
			malformed++
			continue
		}
		candidates = append(candidates, annotation.Candidate{
			ClassID:    d.ClassID,
			ClassName:  d.ClassName,
			Confidence: d.Confidence,
			Box:        entities.BoundingBox{X1: d.BBox[0], Y1: d.BBox[1], X2: d.BBox[2], Y2: d.BBox[3]},
		})
	}
	return candidates, malformed
}

// ParseResult decodes a stored service response, e.g. one saved by an operator.
func ParseResult(r io.Reader) (*Result, error) {
	var res Result
	dec := json.NewDecoder(io.LimitReader(r, maxResponseSize))
	if err := dec.Decode(&res); err != nil {
		return nil, errors.New(fmt.Errorf("decode detection result: %w", err)).
			Component(errors.ComponentDetector).
			Category(errors.CategoryValidation).
			Build()
	}
	return &res, nil
}

// Detect uploads one image and returns the candidates the service found.
// A zero threshold uses the configured default; any other value is clamped.
func (c *Client) Detect(ctx context.Context, fileName string, image io.Reader, threshold float64) ([]annotation.Candidate, error) {
	if threshold == 0 {
		threshold = c.threshold
	}
	threshold = ClampThreshold(threshold)

	body, contentType, err := multipartImage(fileName, image)
	if err != nil {
		return nil, errors.New(fmt.Errorf("build detection request: %w", err)).
			Component(errors.ComponentDetector).
			Category(errors.CategoryFileIO).
			Build()
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	q := url.Values{"confidence_threshold": {strconv.FormatFloat(threshold, 'f', -1, 64)}}
	endpoint := c.baseURL + detectPath + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, unavailable(err, "detect", endpoint)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, unavailable(err, "detect", endpoint)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "detect")
	}

	var res Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&res); err != nil {
		return nil, unavailable(fmt.Errorf("decode response: %w", err), "detect", endpoint)
	}
	if !res.Success {
		return nil, unavailable(fmt.Errorf("service reported failure"), "detect", endpoint)
	}

	candidates, malformed := res.Candidates()
	c.log.Info("detection completed",
		logger.String("file_name", fileName),
		logger.Float64("threshold", threshold),
		logger.Int("detections", len(res.Detections)),
		logger.Int("malformed", malformed),
		logger.String("severity", res.SeverityLevel))
	return candidates, nil
}

// Health checks that the service answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	endpoint := c.baseURL + healthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return unavailable(err, "health", endpoint)
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return unavailable(err, "health", endpoint)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "health")
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}

func multipartImage(fileName string, image io.Reader) (io.Reader, string, error) {
	if image == nil {
		return nil, "", fmt.Errorf("no image data")
	}
	name := filepath.Base(fileName)
	if name == "." || name == string(filepath.Separator) {
		name = "thermal_image.jpg"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func unavailable(err error, operation, endpoint string) error {
	return errors.New(fmt.Errorf("%w: %w", ErrUnavailable, err)).
		Component(errors.ComponentDetector).
		Category(errors.CategoryNetwork).
		Context("operation", operation).
		Context("endpoint", endpoint).
		Build()
}

// statusError keeps the service's detail message, which FastAPI puts in {"detail": ...}.
func statusError(resp *http.Response, operation string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Detail string `json:"detail"`
	}
	detail := string(bytes.TrimSpace(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Detail != "" {
		detail = payload.Detail
	}
	return errors.New(fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, detail)).
		Component(errors.ComponentDetector).
		Category(errors.CategoryIntegration).
		Context("operation", operation).
		Context("status_code", resp.StatusCode).
		Build()
}
