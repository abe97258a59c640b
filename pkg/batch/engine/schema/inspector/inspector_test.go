package inspector_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
	"github.com/Dryik/migration-tool/pkg/batch/engine/schema/cache"
	"github.com/Dryik/migration-tool/pkg/batch/engine/schema/inspector"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/test"
)

func newGateway() *test.FakeGateway {
	gw := test.NewFakeGateway()
	gw.AddModel(test.PartnerModel())
	gw.AddModel(test.CountryModel())
	return gw
}

func names(fields []model.FieldDescriptor) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

func TestGetModel_Discovery(t *testing.T) {
	ctx := context.Background()
	insp := inspector.New(newGateway(), nil, nil, inspector.Options{StoreID: "prod"})

	desc, ok := insp.GetModel(ctx, "res.partner")
	require.True(t, ok)
	assert.Equal(t, "Contact", desc.Label)
	assert.Equal(t, model.AccessRights{Create: true, Read: true, Write: true, Unlink: true}, desc.Access())

	assert.Equal(t,
		[]string{"country_id", "email", "is_company", "name", "parent_id", "phone", "x_legacy_code"},
		names(insp.ImportableFields(ctx, "res.partner")))
	assert.Equal(t, []string{"name"}, names(insp.RequiredFields(ctx, "res.partner")))
	assert.Equal(t, []string{"country_id", "parent_id"}, names(insp.RelationalFields(ctx, "res.partner")))
	assert.Contains(t, names(insp.ExportableFields(ctx, "res.partner")), "category_id")

	legacy, ok := insp.Field(ctx, "res.partner", "x_legacy_code")
	require.True(t, ok)
	assert.True(t, legacy.IsCustomExtension)

	displayName, ok := insp.Field(ctx, "res.partner", "display_name")
	require.True(t, ok)
	assert.Equal(t, model.ClassificationIgnored, displayName.Classification)
	assert.False(t, displayName.Importable)

	country, ok := insp.GetModel(ctx, "res.country")
	require.True(t, ok)
	assert.False(t, country.CanCreate)
	assert.True(t, country.CanRead)
	assert.False(t, country.CanUnlink)
}

func TestGetModel_MemoryHit(t *testing.T) {
	ctx := context.Background()
	gw := newGateway()
	insp := inspector.New(gw, nil, nil, inspector.Options{})

	first, ok := insp.GetModel(ctx, "res.partner")
	require.True(t, ok)
	second, ok := insp.GetModel(ctx, "res.partner")
	require.True(t, ok)
	assert.Same(t, first, second)
	assert.Equal(t, 1, gw.CallCount(test.MethodFieldsGet))
}

func TestGetModel_Unavailable(t *testing.T) {
	ctx := context.Background()
	gw := newGateway()
	insp := inspector.New(gw, nil, nil, inspector.Options{})

	desc, ok := insp.GetModel(ctx, "no.such.model")
	assert.False(t, ok)
	assert.Nil(t, desc)
	assert.Nil(t, insp.ImportableFields(ctx, "no.such.model"))

	gw.FailNext(test.MethodFieldsGet, exception.NewConnectivityError("gateway", "timeout", errors.New("i/o timeout")))
	_, ok = insp.GetModel(ctx, "res.partner")
	assert.False(t, ok, "gateway failure makes the model unavailable")

	_, ok = insp.GetModel(ctx, "res.partner")
	assert.True(t, ok, "failures are not remembered")
}

func TestGetModel_AccessCheckErrorMeansDenied(t *testing.T) {
	gw := newGateway()
	gw.FailNext(test.MethodCheckAccessRights, errors.New("access error"))
	insp := inspector.New(gw, nil, nil, inspector.Options{})

	desc, ok := insp.GetModel(context.Background(), "res.partner")
	require.True(t, ok)
	assert.False(t, desc.CanCreate)
	assert.True(t, desc.CanRead)
	assert.True(t, desc.CanWrite)
}

func TestGetModel_UsesSchemaCache(t *testing.T) {
	ctx := context.Background()
	gw := newGateway()
	shared := cache.New(nil, nil, cache.Options{})

	first := inspector.New(gw, shared, nil, inspector.Options{StoreID: "prod", AutoCache: true})
	_, ok := first.GetModel(ctx, "res.partner")
	require.True(t, ok)
	_, ok = first.GetModel(ctx, "res.country")
	require.True(t, ok)

	gw.ResetCalls()
	second := inspector.New(gw, shared, nil, inspector.Options{StoreID: "prod", AutoCache: true})
	desc, ok := second.GetModel(ctx, "res.partner")
	require.True(t, ok)
	assert.Equal(t, "Contact", desc.Label)
	_, ok = second.GetModel(ctx, "res.country")
	require.True(t, ok)
	assert.Zero(t, gw.CallCount(test.MethodFieldsGet))

	gw.Extensions = append(gw.Extensions, model.Extension{Name: "sale", Version: "17.0.1.0"})
	third := inspector.New(gw, shared, nil, inspector.Options{StoreID: "prod", AutoCache: true})
	_, ok = third.GetModel(ctx, "res.partner")
	require.True(t, ok)
	assert.Equal(t, 1, gw.CallCount(test.MethodFieldsGet), "extension drift invalidates the cache")
}

func TestRefresh_ReplacesDescriptor(t *testing.T) {
	ctx := context.Background()
	gw := newGateway()
	insp := inspector.New(gw, nil, nil, inspector.Options{})

	before, ok := insp.GetModel(ctx, "res.partner")
	require.True(t, ok)
	_, has := before.Field("ref")
	assert.False(t, has)

	partner := test.PartnerModel()
	partner.Fields["ref"] = gateway.RawField{"type": "char", "string": "Reference", "store": true}
	gw.AddModel(partner)

	insp.Refresh(ctx)
	after, ok := insp.GetModel(ctx, "res.partner")
	require.True(t, ok)
	_, has = after.Field("ref")
	assert.True(t, has)
	_, has = before.Field("ref")
	assert.False(t, has, "old descriptor is not mutated")
}

func TestModels(t *testing.T) {
	gw := newGateway()
	gw.AddModel(test.FakeModel{Name: "base.import.wizard", Transient: true})
	insp := inspector.New(gw, nil, nil, inspector.Options{})

	list, err := insp.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"res.country", "res.partner"}, list)

	gw.FailNext(test.MethodSearchRead, errors.New("boom"))
	_, err = insp.Models(context.Background())
	assert.Error(t, err)
}

func TestPreloadCommonModels(t *testing.T) {
	insp := inspector.New(newGateway(), nil, nil, inspector.Options{})
	assert.Equal(t, 2, insp.PreloadCommonModels(context.Background()))
}

func TestClearCache(t *testing.T) {
	ctx := context.Background()
	gw := newGateway()
	c := cache.New(nil, nil, cache.Options{})
	insp := inspector.New(gw, c, nil, inspector.Options{StoreID: "prod", AutoCache: true})

	_, ok := insp.GetModel(ctx, "res.partner")
	require.True(t, ok)
	require.NoError(t, insp.ClearCache(ctx))

	_, ok = insp.GetModel(ctx, "res.partner")
	require.True(t, ok)
	assert.Equal(t, 2, gw.CallCount(test.MethodFieldsGet))
}
