package datastore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tphakala/transformer-inspect/internal/datastore"
	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/observability/metrics"
	"github.com/tphakala/transformer-inspect/internal/testutil"
)

type fakeRecorder struct {
	mu     sync.Mutex
	ops    map[string]int
	errors map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{ops: map[string]int{}, errors: map[string]int{}}
}

func (f *fakeRecorder) RecordDbOperation(operation, table, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops[operation+"/"+table+"/"+status]++
}

func (f *fakeRecorder) RecordDbOperationDuration(string, string, float64) {}

func (f *fakeRecorder) RecordDbOperationError(operation, table, errorType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[operation+"/"+table+"/"+errorType]++
}

func newTransformer(no string) *entities.Transformer {
	return &entities.Transformer{
		TransformerNo:   no,
		Location:        "Main Street",
		Region:          entities.RegionKotte,
		PoleNo:          "P-1",
		TransformerType: entities.TransformerTypeBulk,
	}
}

func TestSQLiteManagerLifecycle(t *testing.T) {
	dir := t.TempDir()
	mgr, err := datastore.NewSQLiteManager(datastore.Config{DataDir: dir, Logger: testutil.DiscardLogger()})
	require.NoError(t, err)

	require.NoError(t, mgr.Initialize())
	assert.True(t, mgr.Exists())
	assert.False(t, mgr.IsMySQL())
	assert.Contains(t, mgr.Path(), datastore.DefaultDBFileName)
	require.NoError(t, mgr.Ping(context.Background()))

	// Initialize is idempotent
	require.NoError(t, mgr.Initialize())

	require.NoError(t, mgr.Delete())
	assert.False(t, mgr.Exists())
}

func TestUniqueKeyViolationIsTranslated(t *testing.T) {
	mgr, _ := testutil.NewTestDB(t)
	db := mgr.DB()

	require.NoError(t, db.Create(newTransformer("TX-100")).Error)

	err := db.Create(newTransformer("tx-100")).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestForeignKeyViolationIsTranslated(t *testing.T) {
	mgr, _ := testutil.NewTestDB(t)

	err := mgr.DB().Create(&entities.Inspection{InspectionNo: "INS-1", TransformerID: 999}).Error
	assert.ErrorIs(t, err, gorm.ErrForeignKeyViolated)
}

func TestDatabaseCascadeBackstop(t *testing.T) {
	mgr, _ := testutil.NewTestDB(t)
	db := mgr.DB()

	tr := newTransformer("TX-200")
	require.NoError(t, db.Create(tr).Error)
	insp := &entities.Inspection{InspectionNo: "INS-200", TransformerID: tr.ID}
	require.NoError(t, db.Create(insp).Error)
	img := &entities.Image{
		TransformerID: tr.ID, InspectionID: &insp.ID, FileName: "a.jpg", FilePath: "a-1.jpg",
		EnvCondition: entities.EnvSunny, ImageType: entities.ImageBaseline,
	}
	require.NoError(t, db.Create(img).Error)
	ann := &entities.Annotation{ImageID: img.ID, ClassName: "hotspot", AnnotationType: entities.AnnotationAutoDetected, IsActive: true}
	ann.SetBox(entities.BoundingBox{X1: 1, Y1: 1, X2: 2, Y2: 2})
	require.NoError(t, db.Create(ann).Error)

	require.NoError(t, db.Delete(&entities.Transformer{}, tr.ID).Error)

	for _, model := range []any{&entities.Inspection{}, &entities.Image{}, &entities.Annotation{}} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		assert.Zero(t, n)
	}
}

func TestInspectionDefaults(t *testing.T) {
	mgr, clock := testutil.NewTestDB(t)
	db := mgr.DB()

	tr := newTransformer("TX-300")
	require.NoError(t, db.Create(tr).Error)

	insp := &entities.Inspection{InspectionNo: "  INS-300 ", TransformerID: tr.ID}
	require.NoError(t, db.Create(insp).Error)

	assert.Equal(t, "INS-300", insp.InspectionNo)
	assert.Equal(t, entities.InspectionInProgress, insp.Status)
	assert.False(t, insp.InspectedDate.IsZero())
	assert.True(t, insp.InspectedDate.After(testutil.TestClockStart))
	assert.False(t, insp.CreatedAt.After(clock.Peek()))
}

func TestInstrumentRecordsStatements(t *testing.T) {
	rec := newFakeRecorder()
	mgr, err := datastore.NewSQLiteManager(datastore.Config{
		DataDir:  t.TempDir(),
		Logger:   testutil.DiscardLogger(),
		Recorder: rec,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Initialize())

	db := mgr.DB()
	require.NoError(t, db.Create(newTransformer("TX-1")).Error)
	require.Error(t, db.Create(newTransformer("TX-1")).Error)

	var got entities.Transformer
	require.NoError(t, db.First(&got).Error)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.ops[metrics.OpCreate+"/transformers/"+metrics.StatusSuccess])
	assert.Equal(t, 1, rec.ops[metrics.OpCreate+"/transformers/"+metrics.StatusError])
	assert.Equal(t, 1, rec.errors[metrics.OpCreate+"/transformers/duplicate_key"])
	assert.GreaterOrEqual(t, rec.ops[metrics.OpQuery+"/transformers/"+metrics.StatusSuccess], 1)
}
