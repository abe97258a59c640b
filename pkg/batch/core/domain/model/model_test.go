package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldType(t *testing.T) {
	assert.Equal(t, model.FieldTypeMany2One, model.ParseFieldType("many2one"))
	assert.Equal(t, model.FieldTypeProperties, model.ParseFieldType("properties_definition"))
	assert.Equal(t, model.FieldTypeUnknown, model.ParseFieldType("json"))
	assert.Equal(t, model.FieldTypeUnknown, model.ParseFieldType(""))
	assert.True(t, model.FieldTypeSelection.IsSimpleScalar())
	assert.False(t, model.FieldTypeMany2One.IsSimpleScalar())
	assert.True(t, model.FieldTypeBinary.IsUnsupportedForImport())
}

func TestModelDescriptor_DerivedViews(t *testing.T) {
	fields := []model.FieldDescriptor{
		{Name: "name", Required: true, Importable: true, Exportable: true, Type: model.FieldTypeChar},
		{Name: "parent_id", Importable: true, Exportable: true, Type: model.FieldTypeMany2One},
		{Name: "display_name", Type: model.FieldTypeChar},
		{Name: "total", Exportable: true, Required: true, Type: model.FieldTypeMonetary},
	}
	md := model.NewModelDescriptor("res.partner", "Contact", false, model.AccessRights{Create: true, Read: true}, fields)

	names := func(fs []model.FieldDescriptor) []string {
		out := []string{}
		for _, f := range fs {
			out = append(out, f.Name)
		}
		return out
	}

	assert.Equal(t, []string{"name", "parent_id"}, names(md.ImportableFields()))
	assert.Equal(t, []string{"name"}, names(md.RequiredFields()))
	assert.Equal(t, []string{"parent_id"}, names(md.RelationalFields()))
	assert.Equal(t, []string{"name", "parent_id", "total"}, names(md.ExportableFields()))
	assert.True(t, md.CanCreate)
	assert.False(t, md.CanUnlink)

	fields[0].Name = "mutated"
	_, ok := md.Field("name")
	assert.True(t, ok)
}

func TestRecord_Markers(t *testing.T) {
	r := model.Record{"name": "Acme", model.MarkerSourceRow: 4}
	_, isUpdate := r.UpdateTarget()
	assert.False(t, isUpdate)
	assert.Equal(t, 4, r.SourceRow(0))

	u := r.AsUpdate(42)
	id, isUpdate := u.UpdateTarget()
	assert.True(t, isUpdate)
	assert.Equal(t, int64(42), id)
	assert.NotContains(t, r, model.MarkerAction)

	assert.Equal(t, map[string]interface{}{"name": "Acme"}, u.Payload())
	assert.Equal(t, 7, model.Record{}.SourceRow(7))
}

func TestAsInt64(t *testing.T) {
	for _, v := range []interface{}{7, int32(7), int64(7), float64(7), json.Number("7"), "7"} {
		got, ok := model.AsInt64(v)
		assert.True(t, ok, "%T", v)
		assert.Equal(t, int64(7), got)
	}
	_, ok := model.AsInt64(7.5)
	assert.False(t, ok)
	_, ok = model.AsInt64(true)
	assert.False(t, ok)
	_, ok = model.AsInt64(nil)
	assert.False(t, ok)
}

func TestBatchUnit_Transitions(t *testing.T) {
	now := time.Now()
	b := model.NewBatchUnit(0, 0, 3)
	assert.Equal(t, 3, b.RecordCount)

	require.Error(t, b.Complete(now, nil, nil))
	require.NoError(t, b.Start(now))
	require.Error(t, b.Skip())
	require.NoError(t, b.Complete(now.Add(time.Second), []int64{1, 2, 3}, nil))
	assert.True(t, b.Status.IsTerminal())
	assert.Equal(t, time.Second, b.Duration())
	require.Error(t, b.Fail(now, "late", nil, nil))

	s := model.NewBatchUnit(1, 3, 6)
	require.NoError(t, s.Skip())
	assert.Equal(t, model.BatchStatusSkipped, s.Status)
}

func TestIDList_ValueScan(t *testing.T) {
	v, err := model.IDList{1, 2}.Value()
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", v)

	var l model.IDList
	require.NoError(t, l.Scan([]byte("[5,6]")))
	assert.Equal(t, model.IDList{5, 6}, l)
	require.NoError(t, l.Scan(nil))
	assert.Empty(t, l)
	assert.Error(t, l.Scan(12))
}

func TestBatchResult_Rates(t *testing.T) {
	start := time.Now()
	r := &model.BatchResult{
		ProcessedRecords: 10,
		CreatedRecords:   9,
		FailedRecords:    1,
		StartedAt:        start,
		CompletedAt:      start.Add(2 * time.Second),
	}
	assert.InDelta(t, 5.0, r.RecordsPerSecond(), 0.0001)
	assert.InDelta(t, 90.0, r.SuccessRate(), 0.0001)

	r.ResumedFrom = 4
	assert.InDelta(t, 3.0, r.RecordsPerSecond(), 0.0001)

	empty := &model.BatchResult{}
	assert.Equal(t, 0.0, empty.RecordsPerSecond())
	assert.Equal(t, 0.0, empty.SuccessRate())
}

func TestStateFileName(t *testing.T) {
	assert.Equal(t, "res_partner_state.json", model.StateFileName("res.partner"))
}

func TestParseDedupeStrategy(t *testing.T) {
	s, err := model.ParseDedupeStrategy("UPDATE")
	require.NoError(t, err)
	assert.Equal(t, model.DedupeUpdate, s)
	s, err = model.ParseDedupeStrategy("")
	require.NoError(t, err)
	assert.Equal(t, model.DedupeSkip, s)
	_, err = model.ParseDedupeStrategy("merge")
	assert.Error(t, err)
}
