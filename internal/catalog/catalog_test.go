package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mediagateway/pkg/documents"
	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
)

func rec(id string) MediaRecord {
	return MediaRecord{ID: id, Title: id, Tags: []string{}}
}

func ids(t *testing.T, doc Document, collection string) []string {
	t.Helper()
	records, err := doc.Records(collection)
	require.NoError(t, err)
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestMergePrependsNewRecords(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"mixes":[{"id":"old","title":"Old","extra":"kept"}],"theme":"dark"}`))
	require.NoError(t, err)

	res, err := doc.Merge("mixes", []MediaRecord{rec("a"), rec("old"), rec("b"), rec("a")}, 0)
	require.NoError(t, err)
	assert.Len(t, res.Added, 2)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []string{"a", "b", "old"}, ids(t, doc, "mixes"))

	raw, err := doc.RawRecords("mixes")
	require.NoError(t, err)
	assert.Contains(t, string(raw[2]), `"extra":"kept"`)
	assert.JSONEq(t, `"dark"`, string(doc["theme"]))
}

func TestMergeIsIdempotent(t *testing.T) {
	doc := Document{}
	batch := []MediaRecord{rec("a"), rec("b")}

	_, err := doc.Merge("mixes", batch, 0)
	require.NoError(t, err)
	res, err := doc.Merge("mixes", batch, 0)
	require.NoError(t, err)

	assert.Empty(t, res.Added)
	assert.Equal(t, []string{"a", "b"}, ids(t, doc, "mixes"))
}

func TestMergeCapsCollection(t *testing.T) {
	doc := Document{}
	for run := 0; run < 10; run++ {
		batch := make([]MediaRecord, 0, 7)
		for i := 0; i < 7; i++ {
			batch = append(batch, rec(fmt.Sprintf("r%d-%d", run, i)))
		}
		res, err := doc.Merge("mixes", batch, 20)
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Total, 20)
	}
	got := ids(t, doc, "mixes")
	assert.Len(t, got, 20)
	assert.Equal(t, "r9-0", got[0])
}

func TestMergeAddedNeverExceedsCap(t *testing.T) {
	doc := Document{}
	res, err := doc.Merge("mixes", []MediaRecord{rec("a"), rec("b"), rec("c")}, 2)
	require.NoError(t, err)
	assert.Len(t, res.Added, 2)
	assert.Equal(t, 2, res.Total)
}

func TestRecordIDHandlesNumbers(t *testing.T) {
	assert.Equal(t, "42", recordID(json.RawMessage(`{"id":42}`)))
	assert.Equal(t, "x", recordID(json.RawMessage(`{"id":"x"}`)))
	assert.Equal(t, "", recordID(json.RawMessage(`{"title":"none"}`)))
}

func TestParseDocumentRejectsNonObjects(t *testing.T) {
	_, err := ParseDocument([]byte(`[1,2]`))
	assert.Error(t, err)

	doc, err := ParseDocument(nil)
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestServiceLoadSave(t *testing.T) {
	svc := NewService(documents.NewMemoryStore(), "", nil)
	ctx := context.Background()

	_, found, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, svc.Save(ctx, []byte(` {"songs":[]} `)))
	raw, found, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"songs":[]}`, string(raw))

	err = svc.Save(ctx, []byte(`{not json`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceLastWriterWins(t *testing.T) {
	svc := NewService(documents.NewMemoryStore(), "catalog", nil)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, []byte(`{"v":1}`)))
	require.NoError(t, svc.Save(ctx, []byte(`{"v":2}`)))
	raw, _, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(raw))
}

func TestServiceDocumentRoundTrip(t *testing.T) {
	svc := NewService(documents.NewMemoryStore(), "catalog", nil)
	ctx := context.Background()

	doc, err := svc.LoadDocument(ctx)
	require.NoError(t, err)
	_, err = doc.Merge("mixes", []MediaRecord{rec("a")}, 0)
	require.NoError(t, err)
	require.NoError(t, svc.SaveDocument(ctx, doc))

	again, err := svc.LoadDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(t, again, "mixes"))
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, error) { return "", errors.New("down") }
func (brokenStore) Set(context.Context, string, string) error   { return errors.New("down") }
func (brokenStore) Ping(context.Context) error                  { return errors.New("down") }

func TestServiceErrors(t *testing.T) {
	ctx := context.Background()

	unconfigured := NewService(nil, "", nil)
	_, _, err := unconfigured.Load(ctx)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))

	broken := NewService(brokenStore{}, "", nil)
	_, _, err = broken.Load(ctx)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	err = broken.Save(ctx, []byte(`{}`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
