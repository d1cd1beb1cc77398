package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/transformer-inspect/internal/annotation"
	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/datastore/repository"
	"github.com/tphakala/transformer-inspect/internal/detector"
	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/inventory"
	"github.com/tphakala/transformer-inspect/internal/observability"
	"github.com/tphakala/transformer-inspect/internal/storage"
	"github.com/tphakala/transformer-inspect/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-cache's janitor is only stopped by a finalizer.
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

// fakeDetector returns fixed candidates or a fixed error.
type fakeDetector struct {
	mu         sync.Mutex
	candidates []annotation.Candidate
	err        error
	thresholds []float64
	payload    string
}

func (f *fakeDetector) Detect(_ context.Context, _ string, image io.Reader, threshold float64) ([]annotation.Candidate, error) {
	data, _ := io.ReadAll(image)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thresholds = append(f.thresholds, threshold)
	f.payload = string(data)
	return f.candidates, f.err
}

type testEnv struct {
	e        *echo.Echo
	ctrl     *Controller
	detector *fakeDetector
	metrics  *observability.Metrics
}

type envOption func(*Deps, *Config)

func withoutDetector() envOption {
	return func(d *Deps, _ *Config) { d.Detector = nil }
}

func withRateLimit(rps float64, burst int) envOption {
	return func(_ *Deps, c *Config) { c.RateLimit, c.RateBurst = rps, burst }
}

func setupTestEnvironment(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	mgr, _ := testutil.NewTestDB(t)
	repos := repository.New(mgr.DB())
	log := testutil.DiscardLogger()

	store, err := storage.NewLocalStore(t.TempDir(), storage.WithLogger(log))
	require.NoError(t, err)

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	summary := NewSummaryCache(0)
	inv := inventory.New(repos, store,
		inventory.WithLogger(log),
		inventory.WithUploadLimits(1024, nil),
		inventory.WithChangeHook(summary.Invalidate))
	ann := annotation.NewManager(repos,
		annotation.WithLogger(log),
		annotation.WithRecorder(metrics.Annotation),
		annotation.WithChangeHook(summary.Invalidate))

	det := &fakeDetector{}
	deps := Deps{
		Inventory:   inv,
		Annotations: ann,
		Detector:    det,
		DB:          mgr,
		Metrics:     metrics,
		Summary:     summary,
	}
	cfg := Config{DiskPath: t.TempDir()}
	for _, opt := range opts {
		opt(&deps, &cfg)
	}

	e := echo.New()
	ctrl := New(e, deps, cfg, WithLogger(log))
	return &testEnv{e: e, ctrl: ctrl, detector: det, metrics: metrics}
}

func (env *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) upload(t *testing.T, fileName string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v2/images/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func transformerBody(no string) map[string]string {
	return map[string]string{
		"transformerNo":   no,
		"location":        "Nugegoda junction",
		"region":          "NUGEGODA",
		"poleNo":          "EN-122-B",
		"transformerType": "DISTRIBUTION",
	}
}

// seedImage creates a transformer and one uploaded image and returns their ids.
func seedImage(t *testing.T, env *testEnv) (transformerID, imageID uint) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/v2/transformers", transformerBody("TX-100"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tr := decode[inventory.TransformerView](t, rec)

	rec = env.upload(t, "thermal.png", []byte("png-bytes"), map[string]string{
		"transformerId": fmt.Sprint(tr.ID),
		"envCondition":  "sunny",
		"imageType":     "MAINTENANCE",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	img := decode[inventory.ImageView](t, rec)
	return tr.ID, img.ID
}

func TestHealthCheck(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := env.do(t, http.MethodGet, "/api/v2/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database_status"])
	assert.Equal(t, "configured", body["detector_status"])
	assert.Contains(t, body, "system")
	assert.Contains(t, body, "uptime_seconds")
	assert.InDelta(t, 1, body["requests_in_flight"], 0, "the health request itself is in flight")
}

func TestTransformerEndpoints(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := env.do(t, http.MethodPost, "/api/v2/transformers", transformerBody("TX-001"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[inventory.TransformerView](t, rec)
	assert.Equal(t, "TX-001", created.TransformerNo)
	assert.Equal(t, entities.RegionNugegoda, created.Region)

	t.Run("duplicate_is_conflict", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v2/transformers", transformerBody("tx-001"))
		require.Equal(t, http.StatusConflict, rec.Code)

		body := decode[ErrorResponse](t, rec)
		assert.Equal(t, http.StatusConflict, body.Code)
		assert.NotEmpty(t, body.Message)
		assert.Contains(t, body.Error, "already exists")
		assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), body.CorrelationID)
	})

	t.Run("missing_field_is_bad_request", func(t *testing.T) {
		in := transformerBody("TX-002")
		delete(in, "poleNo")
		rec := env.do(t, http.MethodPost, "/api/v2/transformers", in)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get_and_not_found", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v2/transformers/%d", created.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[map[string]any](t, rec)
		assert.InDelta(t, 0, body["imageCount"], 0)
		assert.NotContains(t, body, "transformerNoKey")

		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v2/transformers/999", nil).Code)
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v2/transformers/abc", nil).Code)
	})

	t.Run("update_and_search", func(t *testing.T) {
		in := transformerBody("TX-001")
		in["location"] = "Kotte Road 5%"
		rec := env.do(t, http.MethodPut, fmt.Sprintf("/api/v2/transformers/%d", created.ID), in)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.do(t, http.MethodGet, "/api/v2/transformers/search?location=road%205%25", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]inventory.TransformerView](t, rec), 1)
	})

	t.Run("enum_listings", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v2/transformers/regions", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]string](t, rec), len(entities.Regions))

		rec = env.do(t, http.MethodGet, "/api/v2/transformers/types", nil)
		assert.Equal(t, []string{"BULK", "DISTRIBUTION"}, decode[[]string](t, rec))
	})

	t.Run("delete", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, fmt.Sprintf("/api/v2/transformers/%d", created.ID), nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, fmt.Sprintf("/api/v2/transformers/%d", created.ID), nil).Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, fmt.Sprintf("/api/v2/transformers/%d", created.ID), nil).Code)
	})
}

func TestInspectionEndpoints(t *testing.T) {
	env := setupTestEnvironment(t)
	rec := env.do(t, http.MethodPost, "/api/v2/transformers", transformerBody("TX-010"))
	require.Equal(t, http.StatusCreated, rec.Code)
	tr := decode[inventory.TransformerView](t, rec)

	rec = env.do(t, http.MethodPost, "/api/v2/inspections", map[string]any{
		"inspectionNo": "INS-1", "transformerId": 999, "branch": "Nugegoda",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code, "missing transformer is a reference error")

	rec = env.do(t, http.MethodPost, "/api/v2/inspections", map[string]any{
		"inspectionNo": "INS-1", "transformerId": tr.ID, "branch": "Nugegoda", "status": "bogus",
		"inspectedBy": "N. Perera", "inspectedDate": "2026-02-03T09:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	insp := decode[inventory.InspectionView](t, rec)
	assert.Equal(t, entities.InspectionInProgress, insp.Status)
	assert.Equal(t, "In Progress", insp.StatusDisplayName)
	assert.Equal(t, "TX-010", insp.TransformerNo)

	rec = env.do(t, http.MethodPost, "/api/v2/inspections", map[string]any{"inspectionNo": "ins-1", "transformerId": tr.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/v2/inspections/%d", insp.ID), map[string]any{
		"inspectionNo": "INS-1", "transformerId": tr.ID, "branch": "Nugegoda", "status": "completed",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, entities.InspectionCompleted, decode[inventory.InspectionView](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/api/v2/inspections/search?query=INS-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]inventory.InspectionView](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/v2/inspections/status/COMPLETED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]inventory.InspectionView](t, rec), 1)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v2/inspections/status/DONE", nil).Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v2/inspections/transformer/%d", tr.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]inventory.InspectionView](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/v2/inspections/statuses", nil)
	statuses := decode[[]StatusOption](t, rec)
	require.Len(t, statuses, 4)
	assert.Equal(t, "In Progress", statuses[0].DisplayName)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, fmt.Sprintf("/api/v2/inspections/%d", insp.ID), nil).Code)
}

func TestImageUploadAndDownload(t *testing.T) {
	env := setupTestEnvironment(t)
	trID, imgID := seedImage(t, env)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v2/images/%d", imgID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	img := decode[inventory.ImageView](t, rec)
	assert.Equal(t, "thermal.png", img.FileName)
	assert.Equal(t, entities.EnvSunny, img.EnvCondition)
	assert.Equal(t, "TX-100", img.TransformerNo)
	assert.NotEqual(t, img.FileName, img.FilePath)

	rec = env.do(t, http.MethodGet, "/api/v2/images/download/"+img.FilePath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "png-bytes", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v2/images/download/nope.png", nil).Code)

	t.Run("filters", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v2/images?transformerId=%d&imageType=maintenance", trID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]inventory.ImageView](t, rec), 1)

		rec = env.do(t, http.MethodGet, "/api/v2/images/condition/RAINY", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[[]inventory.ImageView](t, rec))

		rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v2/images/transformer/%d", trID), nil)
		assert.Len(t, decode[[]inventory.ImageView](t, rec), 1)

		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v2/images?transformerId=x", nil).Code)
	})

	t.Run("rejections", func(t *testing.T) {
		base := map[string]string{"transformerId": fmt.Sprint(trID), "envCondition": "SUNNY", "imageType": "BASELINE"}
		tests := []struct {
			name    string
			file    string
			content []byte
			fields  map[string]string
			code    int
		}{
			{"no_file", "", nil, base, http.StatusBadRequest},
			{"bad_extension", "notes.txt", []byte("x"), base, http.StatusBadRequest},
			{"empty_file", "a.jpg", []byte{}, base, http.StatusBadRequest},
			{"too_large", "a.jpg", bytes.Repeat([]byte("x"), 2048), base, http.StatusBadRequest},
			{"missing_parent", "a.jpg", []byte("x"), map[string]string{"transformerId": "999", "envCondition": "SUNNY", "imageType": "BASELINE"}, http.StatusNotFound},
			{"bad_condition", "a.jpg", []byte("x"), map[string]string{"transformerId": fmt.Sprint(trID), "envCondition": "FOGGY", "imageType": "BASELINE"}, http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := env.upload(t, tt.file, tt.content, tt.fields)
				assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			})
		}
	})

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v2/images/%d", imgID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v2/images/download/"+img.FilePath, nil).Code)
}

func TestDetectImage(t *testing.T) {
	env := setupTestEnvironment(t)
	_, imgID := seedImage(t, env)

	env.detector.candidates = []annotation.Candidate{
		{ClassID: 0, ClassName: "Faulty", Confidence: 0.93, Box: entities.BoundingBox{X1: 10, Y1: 10, X2: 40, Y2: 30}},
		{ClassID: 1, ClassName: "Faulty", Confidence: 0.5, Box: entities.BoundingBox{X1: 40, Y1: 10, X2: 10, Y2: 30}},
	}

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v2/images/%d/detect?confidenceThreshold=0.4&userId=svc", imgID), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[DetectResponse](t, rec)
	assert.Equal(t, 2, resp.Candidates)
	require.Len(t, resp.Annotations, 1)
	assert.Equal(t, entities.AnnotationAutoDetected, resp.Annotations[0].AnnotationType)
	assert.InDelta(t, 25.0, resp.Annotations[0].CenterX, 1e-9)
	assert.Equal(t, []float64{0.4}, env.detector.thresholds)
	assert.Equal(t, "png-bytes", env.detector.payload)

	env.detector.err = errors.New(fmt.Errorf("%w: connection refused", detector.ErrUnavailable)).
		Component(errors.ComponentDetector).Category(errors.CategoryNetwork).Build()
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v2/images/%d/detect", imgID), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v2/images/999/detect", nil).Code)

	noDetector := setupTestEnvironment(t, withoutDetector())
	assert.Equal(t, http.StatusServiceUnavailable, noDetector.do(t, http.MethodPost, "/api/v2/images/1/detect", nil).Code)
}

func TestAnnotationLifecycleEndpoints(t *testing.T) {
	env := setupTestEnvironment(t)
	trID, imgID := seedImage(t, env)

	rec := env.do(t, http.MethodPost, "/api/v2/annotations", map[string]any{
		"imageId": imgID, "classId": 1, "className": "Faulty", "confidenceScore": 0.9,
		"bboxX1": 10, "bboxY1": 20, "bboxX2": 50, "bboxY2": 60, "userId": "alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decode[entities.Annotation](t, rec)
	assert.Equal(t, entities.AnnotationUserAdded, a.AnnotationType)
	assert.InDelta(t, 30.0, a.CenterX, 1e-9)
	assert.InDelta(t, 40.0, a.CenterY, 1e-9)

	rec = env.do(t, http.MethodPost, "/api/v2/annotations", map[string]any{
		"imageId": imgID, "classId": 1, "className": "Faulty", "confidenceScore": 0.9,
		"bboxX1": 50, "bboxY1": 20, "bboxX2": 10, "bboxY2": 60,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v2/annotations/%d/confirm?userId=bob", a.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	confirmed := decode[entities.Annotation](t, rec)
	assert.Equal(t, entities.AnnotationUserConfirmed, confirmed.AnnotationType)
	assert.Equal(t, "bob", confirmed.UserID)
	assert.Equal(t, a.Box(), confirmed.Box())

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v2/annotations/batch/%d", imgID), []map[string]any{
		{"classId": 2, "className": "Potentially Faulty", "confidenceScore": 0.7, "bboxX1": 1, "bboxY1": 1, "bboxX2": 5, "bboxY2": 5},
		{"classId": 2, "className": "Potentially Faulty", "confidenceScore": 1.7, "bboxX1": 1, "bboxY1": 1, "bboxX2": 5, "bboxY2": 5},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]entities.Annotation](t, rec), 1)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v2/annotations/%d?userId=carol", a.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/v2/annotations/%d", a.ID), map[string]any{
		"classId": 1, "className": "Faulty", "confidenceScore": 0.5,
		"bboxX1": 1, "bboxY1": 1, "bboxX2": 2, "bboxY2": 2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "deleted annotations are terminal")

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v2/annotations/image/%d", imgID), nil)
	assert.Len(t, decode[[]entities.Annotation](t, rec), 1)
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v2/annotations/image/%d?includeInactive=true", imgID), nil)
	assert.Len(t, decode[[]entities.Annotation](t, rec), 2)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v2/annotations/transformer/%d", trID), nil)
	assert.Len(t, decode[[]entities.Annotation](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/v2/annotations/user-modifications?includeInactive=true", nil)
	mods := decode[[]entities.Annotation](t, rec)
	require.Len(t, mods, 1)
	assert.Equal(t, entities.AnnotationUserDeleted, mods[0].AnnotationType)

	rec = env.do(t, http.MethodGet, "/api/v2/annotations/high-confidence", nil)
	assert.Empty(t, decode[[]entities.Annotation](t, rec))
	rec = env.do(t, http.MethodGet, "/api/v2/annotations/high-confidence?minConfidence=0.6", nil)
	assert.Len(t, decode[[]entities.Annotation](t, rec), 1)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v2/annotations/high-confidence?minConfidence=2", nil).Code)

	rec = env.do(t, http.MethodGet, "/api/v2/annotations/range?start=2026-01-02T00:00:00Z&end=2026-01-01T00:00:00Z", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v2/annotations/range?start=yesterday&end=today", nil).Code)

	rec = env.do(t, http.MethodGet, "/api/v2/annotations/stats", nil)
	stats := decode[map[string]int64](t, rec)
	assert.Equal(t, int64(1), stats["AUTO_DETECTED"])
	assert.Equal(t, int64(0), stats["USER_DELETED"])

	rec = env.do(t, http.MethodGet, "/api/v2/annotations/types", nil)
	assert.Len(t, decode[[]string](t, rec), len(entities.AnnotationTypes))

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v2/annotations/999", nil).Code)
}

func TestSummaryIsInvalidatedByWrites(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := env.do(t, http.MethodGet, "/api/v2/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[inventory.Summary](t, rec).Transformers)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v2/transformers", transformerBody("TX-200")).Code)

	rec = env.do(t, http.MethodGet, "/api/v2/summary", nil)
	assert.Equal(t, int64(1), decode[inventory.Summary](t, rec).Transformers)
}

func TestUploadRateLimit(t *testing.T) {
	env := setupTestEnvironment(t, withRateLimit(0.001, 1))
	fields := map[string]string{"transformerId": "1", "envCondition": "SUNNY", "imageType": "BASELINE"}

	first := env.upload(t, "a.jpg", []byte("x"), fields)
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := env.upload(t, "a.jpg", []byte("x"), fields)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, http.StatusTooManyRequests, decode[ErrorResponse](t, second).Code)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v2/transformers", nil).Code, "only expensive routes are limited")
}

func TestUnknownRouteAndMetrics(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := env.do(t, http.MethodGet, "/api/v2/nothing-here", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, http.StatusNotFound, body.Code)
	assert.NotEmpty(t, body.CorrelationID)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/transformers", http.NoBody)
	req.Header.Set(echo.HeaderXRequestID, "trace-abc")
	rec = httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	assert.Equal(t, "trace-abc", rec.Header().Get(echo.HeaderXRequestID))

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `http_requests_total{method="GET",path="/api/v2/transformers",status_code="200"}`), rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not_found", repository.ErrTransformerNotFound, http.StatusNotFound},
		{"reference", fmt.Errorf("%w: image 3", repository.ErrReferenceNotFound), http.StatusNotFound},
		{"duplicate", repository.ErrDuplicateKey, http.StatusConflict},
		{"invalid", errors.New(fmt.Errorf("%w: bad box", repository.ErrInvalidInput)).Category(errors.CategoryValidation).Build(), http.StatusBadRequest},
		{"storage_name", storage.ErrInvalidName, http.StatusBadRequest},
		{"storage_fault", storage.ErrStorageFault, http.StatusInternalServerError},
		{"detector", fmt.Errorf("%w: timeout", detector.ErrUnavailable), http.StatusBadGateway},
		{"echo", echo.NewHTTPError(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge},
		{"other", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
