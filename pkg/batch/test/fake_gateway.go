// Package test provides in-memory doubles of the remote store for package tests.
package test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
)

// Gateway method names used by FailNext and CallCount.
const (
	MethodAuthenticate      = "authenticate"
	MethodVersion           = "version"
	MethodFieldsGet         = "fields_get"
	MethodCheckAccessRights = "check_access_rights"
	MethodSearchRead        = "search_read"
	MethodSearch            = "search"
	MethodRead              = "read"
	MethodCreate            = "create"
	MethodWrite             = "write"
	MethodUnlink            = "unlink"
)

// FakeModel describes one model served by FakeGateway.
type FakeModel struct {
	Name      string
	Label     string
	Transient bool
	Fields    map[string]gateway.RawField
	// Denied lists operations CheckAccessRights answers false for.
	Denied []gateway.Operation
	// Manual lists fields reported with state "manual" by ir.model.fields.
	Manual []string
}

// FakeGateway is an in-memory remote store implementing gateway.Gateway.
// Models are registered with AddModel; ir.model, ir.model.fields and
// ir.module.module are synthesized from them.
type FakeGateway struct {
	mu         sync.Mutex
	models     map[string]*FakeModel
	records    map[string][]model.Record
	nextID     int64
	calls      map[string]int
	failures   map[string][]error
	Info       model.VersionInfo
	Extensions []model.Extension

	// CreateHook, when set, is consulted for every record of a CreateMany
	// call. A non-nil error fails the whole call and nothing is created.
	CreateHook func(modelName string, values map[string]interface{}) error
}

var _ gateway.Gateway = (*FakeGateway)(nil)

// NewFakeGateway creates an empty store reporting server version 17.0.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		models:     make(map[string]*FakeModel),
		records:    make(map[string][]model.Record),
		nextID:     1,
		calls:      make(map[string]int),
		failures:   make(map[string][]error),
		Info:       model.VersionInfo{ServerVersion: "17.0", ServerSerie: "17.0", ProtocolVersion: 1},
		Extensions: []model.Extension{{Name: "base", Version: "17.0.1.3"}},
	}
}

// AddModel registers a model.
func (g *FakeGateway) AddModel(m FakeModel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m.Label == "" {
		m.Label = m.Name
	}
	g.models[m.Name] = &m
}

// Seed inserts records directly, bypassing hooks and call counters, and
// returns their ids.
func (g *FakeGateway) Seed(modelName string, recs ...model.Record) []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, g.insertLocked(modelName, r))
	}
	return ids
}

// Records returns copies of the stored records of modelName ordered by id.
func (g *FakeGateway) Records(modelName string) []model.Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Record, 0, len(g.records[modelName]))
	for _, r := range g.records[modelName] {
		out = append(out, r.Clone())
	}
	return out
}

// FailNext queues errors returned by the next calls of method, one per call.
func (g *FakeGateway) FailNext(method string, errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[method] = append(g.failures[method], errs...)
}

// CallCount returns how many times method was called.
func (g *FakeGateway) CallCount(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[method]
}

// ResetCalls clears the call counters.
func (g *FakeGateway) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = make(map[string]int)
}

// enter counts the call and pops a queued failure. Callers hold g.mu.
func (g *FakeGateway) enter(method string) error {
	g.calls[method]++
	queue := g.failures[method]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	g.failures[method] = queue[1:]
	return err
}

func (g *FakeGateway) insertLocked(modelName string, values map[string]interface{}) int64 {
	rec := make(model.Record, len(values)+1)
	for k, v := range values {
		rec[k] = v
	}
	id := g.nextID
	g.nextID++
	rec["id"] = id
	g.records[modelName] = append(g.records[modelName], rec)
	return id
}

func (g *FakeGateway) Authenticate(ctx context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(MethodAuthenticate); err != nil {
		return 0, err
	}
	return 2, nil
}

func (g *FakeGateway) Version(ctx context.Context) (model.VersionInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(MethodVersion); err != nil {
		return model.VersionInfo{}, err
	}
	return g.Info, nil
}

func (g *FakeGateway) FieldsGet(ctx context.Context, modelName string, attributes []string) (map[string]gateway.RawField, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(MethodFieldsGet); err != nil {
		return nil, err
	}
	m, ok := g.models[modelName]
	if !ok {
		return nil, unknownModel(modelName)
	}
	out := make(map[string]gateway.RawField, len(m.Fields))
	for name, raw := range m.Fields {
		cp := make(gateway.RawField, len(raw))
		for k, v := range raw {
			cp[k] = v
		}
		out[name] = cp
	}
	return out, nil
}

func (g *FakeGateway) CheckAccessRights(ctx context.Context, modelName string, op gateway.Operation) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(MethodCheckAccessRights); err != nil {
		return false, err
	}
	m, ok := g.models[modelName]
	if !ok {
		return false, unknownModel(modelName)
	}
	for _, d := range m.Denied {
		if d == op {
			return false, nil
		}
	}
	return true, nil
}

func (g *FakeGateway) SearchRead(ctx context.Context, modelName string, domain gateway.Domain, fields []string, offset, limit int) ([]model.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(MethodSearchRead); err != nil {
		return nil, err
	}
	rows, err := g.tableLocked(modelName)
	if err != nil {
		return nil, err
	}
	matched := filter(rows, domain)
	matched = page(matched, offset, limit)
	return project(matched, fields), nil
}

func (g *FakeGateway) Search(ctx context.Context, modelName string, domain gateway.Domain, offset, limit int) ([]int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(MethodSearch); err != nil {
		return nil, err
	}
	rows, err := g.tableLocked(modelName)
	if err != nil {
		return nil, err
	}
	matched := page(filter(rows, domain), offset, limit)
	ids := make([]int64, 0, len(matched))
	for _, r := range matched {
		id, _ := model.AsInt64(r["id"])
		ids = append(ids, id)
	}
	return ids, nil
}

func (g *FakeGateway) Read(ctx context.Context, modelName string, ids []int64, fields []string) ([]model.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(MethodRead); err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Record
	for _, r := range g.records[modelName] {
		if id, _ := model.AsInt64(r["id"]); want[id] {
			out = append(out, r)
		}
	}
	return project(out, fields), nil
}

func (g *FakeGateway) CreateMany(ctx context.Context, modelName string, records []map[string]interface{}) ([]int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(MethodCreate); err != nil {
		return nil, err
	}
	if _, ok := g.models[modelName]; !ok {
		return nil, unknownModel(modelName)
	}
	if g.CreateHook != nil {
		for _, values := range records {
			if err := g.CreateHook(modelName, values); err != nil {
				return nil, err
			}
		}
	}
	ids := make([]int64, 0, len(records))
	for _, values := range records {
		ids = append(ids, g.insertLocked(modelName, values))
	}
	return ids, nil
}

func (g *FakeGateway) Write(ctx context.Context, modelName string, ids []int64, values map[string]interface{}) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(MethodWrite); err != nil {
		return false, err
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	found := 0
	for _, r := range g.records[modelName] {
		if id, _ := model.AsInt64(r["id"]); want[id] {
			for k, v := range values {
				r[k] = v
			}
			found++
		}
	}
	if found != len(want) {
		return false, exception.NewApplicationError("fake_gateway", fmt.Sprintf("record does not exist or has been deleted (%s %v)", modelName, ids), nil)
	}
	return true, nil
}

func (g *FakeGateway) Unlink(ctx context.Context, modelName string, ids []int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.enter(MethodUnlink); err != nil {
		return false, err
	}
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := g.records[modelName][:0]
	for _, r := range g.records[modelName] {
		if id, _ := model.AsInt64(r["id"]); !drop[id] {
			kept = append(kept, r)
		}
	}
	g.records[modelName] = kept
	return true, nil
}

// tableLocked returns the rows of modelName, synthesizing the metadata models.
func (g *FakeGateway) tableLocked(modelName string) ([]model.Record, error) {
	switch modelName {
	case "ir.model":
		var rows []model.Record
		for _, m := range g.sortedModels() {
			rows = append(rows, model.Record{"id": int64(len(rows) + 1), "model": m.Name, "name": m.Label, "transient": m.Transient})
		}
		return rows, nil
	case "ir.model.fields":
		var rows []model.Record
		for _, m := range g.sortedModels() {
			manual := make(map[string]bool, len(m.Manual))
			for _, f := range m.Manual {
				manual[f] = true
			}
			names := make([]string, 0, len(m.Fields))
			for n := range m.Fields {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				state := "base"
				if manual[n] {
					state = "manual"
				}
				rows = append(rows, model.Record{"id": int64(len(rows) + 1), "model": m.Name, "name": n, "ttype": m.Fields[n]["type"], "state": state})
			}
		}
		return rows, nil
	case "ir.module.module":
		var rows []model.Record
		for _, e := range g.Extensions {
			rows = append(rows, model.Record{"id": int64(len(rows) + 1), "name": e.Name, "installed_version": e.Version, "state": "installed"})
		}
		return rows, nil
	}
	if _, ok := g.models[modelName]; !ok {
		return nil, unknownModel(modelName)
	}
	return g.records[modelName], nil
}

func (g *FakeGateway) sortedModels() []*FakeModel {
	out := make([]*FakeModel, 0, len(g.models))
	for _, m := range g.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func unknownModel(name string) error {
	return exception.NewApplicationError("fake_gateway", fmt.Sprintf("Object %s doesn't exist", name), nil)
}

func filter(rows []model.Record, domain gateway.Domain) []model.Record {
	var out []model.Record
	for _, r := range rows {
		if matches(r, domain) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r model.Record, domain gateway.Domain) bool {
	for _, t := range domain {
		if !matchTerm(r[t.Field], t.Operator, t.Value) {
			return false
		}
	}
	return true
}

func matchTerm(actual interface{}, op string, want interface{}) bool {
	if pair, ok := actual.([]interface{}); ok && len(pair) == 2 {
		actual = pair[0]
	}
	a, w := fmt.Sprint(actual), fmt.Sprint(want)
	switch op {
	case "=":
		return a == w
	case "!=":
		return a != w
	case "=ilike":
		return strings.EqualFold(a, w)
	case "ilike":
		return strings.Contains(strings.ToLower(a), strings.ToLower(w))
	case "in":
		if list, ok := want.([]interface{}); ok {
			for _, v := range list {
				if fmt.Sprint(v) == a {
					return true
				}
			}
		}
		return false
	}
	return false
}

func page(rows []model.Record, offset, limit int) []model.Record {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func project(rows []model.Record, fields []string) []model.Record {
	out := make([]model.Record, 0, len(rows))
	for _, r := range rows {
		if len(fields) == 0 {
			out = append(out, r.Clone())
			continue
		}
		p := model.Record{"id": r["id"]}
		for _, f := range fields {
			if v, ok := r[f]; ok {
				p[f] = v
			} else {
				p[f] = false
			}
		}
		out = append(out, p)
	}
	return out
}
