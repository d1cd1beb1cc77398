package inventory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/datastore/repository"
	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/storage"
	"github.com/tphakala/transformer-inspect/internal/testutil"
)

// memStore keeps blobs in memory. fixedName forces every Save to reuse one
// name, and deleteErr makes Delete fail.
type memStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	seq       int
	fixedName string
	deleteErr error
	deleted   []string
	dir       string
}

func newMemStore(t *testing.T) *memStore {
	return &memStore{blobs: map[string][]byte{}, dir: t.TempDir()}
}

func (m *memStore) Save(_ context.Context, r io.Reader, suggestedName string) (storage.Stored, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.Stored{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	name := m.fixedName
	if name == "" {
		m.seq++
		name = fmt.Sprintf("blob-%d%s", m.seq, strings.ToLower(filepath.Ext(suggestedName)))
	}
	m.blobs[name] = data
	return storage.Stored{Name: name, Size: int64(len(data))}, nil
}

func (m *memStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, name)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.blobs[name]; !ok {
		return storage.ErrNotFound
	}
	delete(m.blobs, name)
	return nil
}

func (m *memStore) Resolve(name string) (string, error) {
	return filepath.Join(m.dir, name), nil
}

func (m *memStore) Open(name string) (*os.File, error) {
	m.mu.Lock()
	data, ok := m.blobs[name]
	m.mu.Unlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	path := filepath.Join(m.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (m *memStore) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[name]
	return ok
}

type fixture struct {
	svc     *Service
	repos   *repository.Repositories
	store   *memStore
	changes int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr, _ := testutil.NewTestDB(t)
	f := &fixture{repos: repository.New(mgr.DB()), store: newMemStore(t)}
	f.svc = New(f.repos, f.store,
		WithLogger(testutil.DiscardLogger()),
		WithUploadLimits(1024, nil),
		WithChangeHook(func() { f.changes++ }))
	return f
}

func transformerInput(no string) TransformerInput {
	return TransformerInput{
		TransformerNo:   no,
		Location:        "Nugegoda Junction",
		Region:          "nugegoda",
		PoleNo:          "EN-122-A",
		TransformerType: "bulk",
	}
}

func (f *fixture) createTransformer(t *testing.T, no string) *TransformerView {
	t.Helper()
	tv, err := f.svc.CreateTransformer(context.Background(), transformerInput(no))
	require.NoError(t, err)
	return tv
}

func (f *fixture) upload(t *testing.T, transformerID, inspectionID *uint, name string) *ImageView {
	t.Helper()
	iv, err := f.svc.UploadImage(context.Background(), uploadRequest(transformerID, inspectionID, name, "thermal"))
	require.NoError(t, err)
	return iv
}

func uploadRequest(transformerID, inspectionID *uint, name, body string) UploadRequest {
	return UploadRequest{
		TransformerID: transformerID,
		InspectionID:  inspectionID,
		FileName:      name,
		Size:          int64(len(body)),
		Body:          strings.NewReader(body),
		EnvCondition:  "sunny",
		ImageType:     "maintenance",
	}
}

func TestCreateTransformerValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*TransformerInput)
	}{
		{"missing number", func(in *TransformerInput) { in.TransformerNo = "  " }},
		{"missing location", func(in *TransformerInput) { in.Location = "" }},
		{"missing pole", func(in *TransformerInput) { in.PoleNo = "" }},
		{"bad region", func(in *TransformerInput) { in.Region = "colombo" }},
		{"bad type", func(in *TransformerInput) { in.TransformerType = "huge" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := transformerInput("TX-1")
			tt.mutate(&in)
			_, err := f.svc.CreateTransformer(ctx, in)
			require.ErrorIs(t, err, repository.ErrInvalidInput)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}

	n, err := f.repos.Transformers.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "rejected input writes nothing")
}

func TestTransformerNumberIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tv := f.createTransformer(t, "TX-001")
	assert.Equal(t, entities.RegionNugegoda, tv.Region)
	assert.Equal(t, entities.TransformerTypeBulk, tv.TransformerType)

	_, err := f.svc.CreateTransformer(ctx, transformerInput("tx-001"))
	require.ErrorIs(t, err, repository.ErrDuplicateKey)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))

	other := f.createTransformer(t, "TX-002")
	_, err = f.svc.UpdateTransformer(ctx, other.ID, transformerInput("Tx-001"))
	require.ErrorIs(t, err, repository.ErrDuplicateKey)

	// renaming to a different case of its own number is allowed
	updated, err := f.svc.UpdateTransformer(ctx, tv.ID, transformerInput("tx-001"))
	require.NoError(t, err)
	assert.Equal(t, "tx-001", updated.TransformerNo)
}

func TestConcurrentTransformerCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 6
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			no := "TX-RACE"
			if i%2 == 1 {
				no = "tx-race"
			}
			_, errs[i] = f.svc.CreateTransformer(ctx, transformerInput(no))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrDuplicateKey)
	}
	assert.Equal(t, 1, ok)
}

func TestTransformerViewsCarryCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tv := f.createTransformer(t, "TX-1")
	f.createTransformer(t, "TX-2")

	_, err := f.svc.CreateInspection(ctx, InspectionInput{InspectionNo: "IN-1", TransformerID: tv.ID})
	require.NoError(t, err)
	f.upload(t, &tv.ID, nil, "a.png")

	got, err := f.svc.GetTransformer(ctx, tv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Inspections)
	assert.EqualValues(t, 1, got.Images)

	list, err := f.svc.ListTransformers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.EqualValues(t, 0, list[1].Images)

	found, err := f.svc.SearchTransformers(ctx, "JUNCTION")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	_, err = f.svc.GetTransformer(ctx, 999)
	require.ErrorIs(t, err, repository.ErrNotFound)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteTransformerCascadesAndRemovesBlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tv := f.createTransformer(t, "TX-1")
	iv, err := f.svc.CreateInspection(ctx, InspectionInput{InspectionNo: "IN-1", TransformerID: tv.ID})
	require.NoError(t, err)
	img := f.upload(t, nil, &iv.ID, "a.png")
	loose := f.upload(t, &tv.ID, nil, "b.png")
	require.NoError(t, f.repos.Annotations.Create(ctx, &entities.Annotation{
		ImageID: img.ID, ClassName: "hotspot", AnnotationType: entities.AnnotationAutoDetected, IsActive: true,
	}))

	require.NoError(t, f.svc.DeleteTransformer(ctx, tv.ID))

	assert.False(t, f.store.has(img.FilePath))
	assert.False(t, f.store.has(loose.FilePath))
	_, err = f.svc.GetInspection(ctx, iv.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.svc.GetImage(ctx, img.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	n, err := f.repos.Annotations.Count(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.ErrorIs(t, f.svc.DeleteTransformer(ctx, tv.ID), repository.ErrNotFound)
}

func TestInspectionStatusRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tv := f.createTransformer(t, "TX-1")

	iv, err := f.svc.CreateInspection(ctx, InspectionInput{
		InspectionNo: "IN-1", TransformerID: tv.ID, Status: "finished", Branch: "Kotte",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.InspectionInProgress, iv.Status, "unknown status falls back on create")
	assert.Equal(t, "In Progress", iv.StatusDisplayName)
	assert.Equal(t, "TX-1", iv.TransformerNo)

	iv, err = f.svc.UpdateInspection(ctx, iv.ID, InspectionInput{
		InspectionNo: "IN-1", TransformerID: tv.ID, Status: "completed",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.InspectionCompleted, iv.Status)

	iv, err = f.svc.UpdateInspection(ctx, iv.ID, InspectionInput{
		InspectionNo: "IN-1", TransformerID: tv.ID, Status: "bogus",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.InspectionCompleted, iv.Status, "unknown status is ignored on update")

	// any status may follow any other
	iv, err = f.svc.UpdateInspection(ctx, iv.ID, InspectionInput{
		InspectionNo: "IN-1", TransformerID: tv.ID, Status: "in progress",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.InspectionInProgress, iv.Status)

	_, err = f.svc.InspectionsByStatus(ctx, "bogus")
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestInspectionReferencesAndDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tv := f.createTransformer(t, "TX-1")

	_, err := f.svc.CreateInspection(ctx, InspectionInput{InspectionNo: "IN-1", TransformerID: 999})
	require.ErrorIs(t, err, repository.ErrReferenceNotFound)
	n, err := f.repos.Inspections.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "no row is written for a missing transformer")

	_, err = f.svc.CreateInspection(ctx, InspectionInput{TransformerID: tv.ID})
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	iv, err := f.svc.CreateInspection(ctx, InspectionInput{InspectionNo: "IN-1", TransformerID: tv.ID})
	require.NoError(t, err)

	_, err = f.svc.CreateInspection(ctx, InspectionInput{InspectionNo: "in-1", TransformerID: tv.ID})
	require.ErrorIs(t, err, repository.ErrDuplicateKey)

	_, err = f.svc.UpdateInspection(ctx, iv.ID, InspectionInput{InspectionNo: "IN-1", TransformerID: 999})
	require.ErrorIs(t, err, repository.ErrReferenceNotFound)

	_, err = f.svc.InspectionsByTransformer(ctx, 999)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSearchInspectionsPrecedence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tv := f.createTransformer(t, "TX-1")
	mk := func(no, branch, by string) {
		_, err := f.svc.CreateInspection(ctx, InspectionInput{
			InspectionNo: no, TransformerID: tv.ID, Branch: branch, InspectedBy: by,
		})
		require.NoError(t, err)
	}
	mk("KOTTE", "Nugegoda", "A. Silva")
	mk("IN-2", "Kotte East", "B. Fernando")
	mk("IN-3", "Kotte West", "Kotte Team")

	exact, err := f.svc.SearchInspections(ctx, "kotte")
	require.NoError(t, err)
	require.Len(t, exact, 1, "exact number match wins")
	assert.Equal(t, "KOTTE", exact[0].InspectionNo)

	branch, err := f.svc.SearchInspections(ctx, "east")
	require.NoError(t, err)
	require.Len(t, branch, 1)
	assert.Equal(t, "IN-2", branch[0].InspectionNo)

	inspector, err := f.svc.SearchInspections(ctx, "fernando")
	require.NoError(t, err)
	require.Len(t, inspector, 1)
	assert.Equal(t, "IN-2", inspector[0].InspectionNo)

	none, err := f.svc.SearchInspections(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tv := f.createTransformer(t, "TX-1")
	other := f.createTransformer(t, "TX-2")
	iv, err := f.svc.CreateInspection(ctx, InspectionInput{InspectionNo: "IN-1", TransformerID: tv.ID})
	require.NoError(t, err)
	missing := uint(999)

	tests := []struct {
		name string
		req  UploadRequest
		want error
	}{
		{"empty file", uploadRequest(&tv.ID, nil, "a.png", ""), repository.ErrInvalidInput},
		{"too large", uploadRequest(&tv.ID, nil, "a.png", strings.Repeat("x", 2048)), repository.ErrInvalidInput},
		{"no extension", uploadRequest(&tv.ID, nil, "thermal", "x"), repository.ErrInvalidInput},
		{"bad extension", uploadRequest(&tv.ID, nil, "a.exe", "x"), repository.ErrInvalidInput},
		{"no owner", uploadRequest(nil, nil, "a.png", "x"), repository.ErrInvalidInput},
		{"mismatched owner", uploadRequest(&other.ID, &iv.ID, "a.png", "x"), repository.ErrInvalidInput},
		{"missing transformer", uploadRequest(&missing, nil, "a.png", "x"), repository.ErrReferenceNotFound},
		{"missing inspection", uploadRequest(nil, &missing, "a.png", "x"), repository.ErrReferenceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UploadImage(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}

	bad := uploadRequest(&tv.ID, nil, "a.png", "x")
	bad.EnvCondition = "foggy"
	_, err = f.svc.UploadImage(ctx, bad)
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	assert.Empty(t, f.store.blobs, "nothing stored for rejected uploads")
}

func TestUploadTakesTransformerFromInspection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tv := f.createTransformer(t, "TX-1")
	iv, err := f.svc.CreateInspection(ctx, InspectionInput{InspectionNo: "IN-1", TransformerID: tv.ID})
	require.NoError(t, err)

	img := f.upload(t, nil, &iv.ID, "Scan.JPG")
	assert.Equal(t, tv.ID, img.TransformerID)
	assert.Equal(t, "TX-1", img.TransformerNo)
	assert.Equal(t, "Scan.JPG", img.FileName)
	assert.Equal(t, "blob-1.jpg", img.FilePath)
	assert.Equal(t, "image/jpeg", img.FileType)
	assert.Equal(t, entities.EnvSunny, img.EnvCondition)
	assert.Equal(t, entities.ImageMaintenance, img.ImageType)

	both := f.upload(t, &tv.ID, &iv.ID, "b.png")
	assert.Equal(t, tv.ID, both.TransformerID)

	byInspection, err := f.svc.ImagesByInspection(ctx, iv.ID)
	require.NoError(t, err)
	assert.Len(t, byInspection, 2)
}

func TestMovingInspectionCarriesItsImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txA := f.createTransformer(t, "TX-A")
	txB := f.createTransformer(t, "TX-B")
	iv, err := f.svc.CreateInspection(ctx, InspectionInput{InspectionNo: "IN-1", TransformerID: txA.ID})
	require.NoError(t, err)
	img := f.upload(t, nil, &iv.ID, "scan.png")
	require.Equal(t, txA.ID, img.TransformerID)

	_, err = f.svc.UpdateInspection(ctx, iv.ID, InspectionInput{InspectionNo: "IN-1", TransformerID: txB.ID})
	require.NoError(t, err)

	moved, err := f.svc.GetImage(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, txB.ID, moved.TransformerID)
	assert.Equal(t, "TX-B", moved.TransformerNo)

	ofB, err := f.svc.ImagesByTransformer(ctx, txB.ID)
	require.NoError(t, err)
	assert.Len(t, ofB, 1)
	ofA, err := f.svc.ImagesByTransformer(ctx, txA.ID)
	require.NoError(t, err)
	assert.Empty(t, ofA)

	// New uploads must agree with the moved inspection.
	f.upload(t, &txB.ID, &iv.ID, "again.png")
	_, err = f.svc.UploadImage(ctx, uploadRequest(&txA.ID, &iv.ID, "stale.png", "thermal"))
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestUploadRemovesBlobWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tv := f.createTransformer(t, "TX-1")
	f.store.fixedName = "fixed.png"

	f.upload(t, &tv.ID, nil, "a.png")
	_, err := f.svc.UploadImage(ctx, uploadRequest(&tv.ID, nil, "b.png", "thermal"))
	require.ErrorIs(t, err, repository.ErrDuplicateKey)

	assert.Equal(t, []string{"fixed.png"}, f.store.deleted, "compensating delete of the new blob")
	n, err := f.repos.Images.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDeleteImageToleratesBlobFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tv := f.createTransformer(t, "TX-1")
	img := f.upload(t, &tv.ID, nil, "a.png")
	f.store.deleteErr = fmt.Errorf("disk on fire")

	require.NoError(t, f.svc.DeleteImage(ctx, img.ID))

	_, err := f.svc.GetImage(ctx, img.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, f.svc.DeleteImage(ctx, img.ID), repository.ErrNotFound)
}

func TestImageFiltersAndDownload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tv := f.createTransformer(t, "TX-1")
	first := f.upload(t, &tv.ID, nil, "a.png")

	rainy := uploadRequest(&tv.ID, nil, "b.png", "rain")
	rainy.EnvCondition = "RAINY"
	rainy.ImageType = "baseline"
	second, err := f.svc.UploadImage(ctx, rainy)
	require.NoError(t, err)

	list, err := f.svc.ListImages(ctx, ImageQuery{TransformerID: &tv.ID, EnvCondition: "rainy"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	baseline, err := f.svc.ImagesByType(ctx, "baseline")
	require.NoError(t, err)
	require.Len(t, baseline, 1)

	sunny, err := f.svc.ImagesByCondition(ctx, "sunny")
	require.NoError(t, err)
	require.Len(t, sunny, 1)
	assert.Equal(t, first.ID, sunny[0].ID)

	_, err = f.svc.ImagesByCondition(ctx, "foggy")
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	blob, err := f.svc.OpenImageByFileName(ctx, first.FilePath)
	require.NoError(t, err)
	defer blob.File.Close()
	var buf bytes.Buffer
	_, err = io.Copy(&buf, blob.File)
	require.NoError(t, err)
	assert.Equal(t, "thermal", buf.String())
	assert.Equal(t, "image/png", blob.ContentType)

	_, err = f.svc.OpenImageByFileName(ctx, "unknown.png")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSummaryAndChangeHook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tv := f.createTransformer(t, "TX-1")
	_, err := f.svc.CreateInspection(ctx, InspectionInput{InspectionNo: "IN-1", TransformerID: tv.ID, Status: "missing"})
	require.NoError(t, err)
	f.upload(t, &tv.ID, nil, "a.png")

	sum, err := f.svc.Summary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sum.Transformers)
	assert.EqualValues(t, 1, sum.Inspections)
	assert.EqualValues(t, 1, sum.Images)
	assert.EqualValues(t, 1, sum.InspectionsByStatus[entities.InspectionMissing])
	assert.Zero(t, sum.ActiveAnnotations)
	assert.Equal(t, 3, f.changes)
}
