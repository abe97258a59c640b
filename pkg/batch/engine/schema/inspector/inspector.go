// Package inspector discovers and classifies remote model schemas through
// the gateway, backed by the two-tier schema cache.
package inspector

import (
	"context"
	"sort"
	"sync"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/core/gateway"
	"github.com/Dryik/migration-tool/pkg/batch/engine/schema/cache"
	"github.com/Dryik/migration-tool/pkg/batch/engine/schema/classifier"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// CommonModels are the models preloaded by PreloadCommonModels.
var CommonModels = []string{
	"res.partner",
	"res.partner.category",
	"res.country",
	"res.country.state",
	"res.currency",
	"res.company",
	"res.users",
	"product.template",
	"product.product",
	"product.category",
	"uom.uom",
	"uom.category",
	"account.account",
	"account.journal",
	"account.move",
	"account.move.line",
	"account.tax",
	"stock.warehouse",
	"stock.location",
	"sale.order",
	"sale.order.line",
	"purchase.order",
	"purchase.order.line",
}

// Options configures an Inspector.
type Options struct {
	// StoreID identifies the remote store in the schema cache.
	StoreID string
	// AutoCache saves the descriptor set after every discovery.
	AutoCache bool
}

// Inspector discovers model descriptors on demand. Descriptors are replaced
// whole, never mutated, so callers may hold on to them.
type Inspector struct {
	gw         gateway.Gateway
	cache      *cache.Cache
	classifier *classifier.Classifier
	opts       Options

	mu     sync.RWMutex
	models map[string]*model.ModelDescriptor

	identityMu sync.Mutex
	identity   *storeIdentity
	saveMu     sync.Mutex
}

type storeIdentity struct {
	version     string
	versionInfo model.VersionInfo
	extensions  []model.Extension
}

// New creates an Inspector. c may be nil to disable caching.
func New(gw gateway.Gateway, c *cache.Cache, cl *classifier.Classifier, opts Options) *Inspector {
	if cl == nil {
		cl = classifier.New(false)
	}
	return &Inspector{
		gw:         gw,
		cache:      c,
		classifier: cl,
		opts:       opts,
		models:     make(map[string]*model.ModelDescriptor),
	}
}

// GetModel returns the descriptor of name. The lookup order is memory, the
// schema cache, then live discovery. ok is false when the model does not
// exist or cannot be inspected; the failure is logged, never returned.
func (i *Inspector) GetModel(ctx context.Context, name string) (*model.ModelDescriptor, bool) {
	i.mu.RLock()
	desc, ok := i.models[name]
	i.mu.RUnlock()
	if ok {
		return desc, true
	}

	if desc, ok := i.loadFromCache(ctx, name); ok {
		return desc, true
	}

	desc, ok = i.discover(ctx, name)
	if !ok {
		return nil, false
	}
	i.mu.Lock()
	i.models[name] = desc
	i.mu.Unlock()

	if i.opts.AutoCache {
		i.saveToCache(ctx)
	}
	return desc, true
}

// Refresh rediscovers the named models, or every model already known when
// names is empty. Models that cannot be rediscovered keep their descriptor.
func (i *Inspector) Refresh(ctx context.Context, names ...string) {
	if len(names) == 0 {
		i.mu.RLock()
		for name := range i.models {
			names = append(names, name)
		}
		i.mu.RUnlock()
		sort.Strings(names)
	}

	for _, name := range names {
		desc, ok := i.discover(ctx, name)
		if !ok {
			continue
		}
		i.mu.Lock()
		i.models[name] = desc
		i.mu.Unlock()
	}

	i.identityMu.Lock()
	i.identity = nil
	i.identityMu.Unlock()

	if i.opts.AutoCache {
		i.saveToCache(ctx)
	}
}

// Models lists the technical names of every non-transient model of the store.
func (i *Inspector) Models(ctx context.Context) ([]string, error) {
	rows, err := i.gw.SearchRead(ctx, "ir.model", gateway.Eq("transient", false), []string{"model", "name"}, 0, 0)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		if s, ok := r["model"].(string); ok && s != "" {
			names = append(names, s)
		}
	}
	sort.Strings(names)
	return names, nil
}

// PreloadCommonModels loads CommonModels and returns how many are available.
func (i *Inspector) PreloadCommonModels(ctx context.Context) int {
	loaded := 0
	for _, name := range CommonModels {
		if ctx.Err() != nil {
			break
		}
		if _, ok := i.GetModel(ctx, name); ok {
			loaded++
		}
	}
	logger.Infof("Preloaded %d/%d common models.", loaded, len(CommonModels))
	return loaded
}

// ClearCache forgets every descriptor and invalidates the store's cache entry.
func (i *Inspector) ClearCache(ctx context.Context) error {
	i.mu.Lock()
	i.models = make(map[string]*model.ModelDescriptor)
	i.mu.Unlock()
	if i.cache == nil {
		return nil
	}
	return i.cache.Invalidate(ctx, i.opts.StoreID)
}

// ImportableFields returns the importable fields of name, or nil when the
// model is unavailable.
func (i *Inspector) ImportableFields(ctx context.Context, name string) []model.FieldDescriptor {
	if desc, ok := i.GetModel(ctx, name); ok {
		return desc.ImportableFields()
	}
	return nil
}

// RequiredFields returns the required importable fields of name.
func (i *Inspector) RequiredFields(ctx context.Context, name string) []model.FieldDescriptor {
	if desc, ok := i.GetModel(ctx, name); ok {
		return desc.RequiredFields()
	}
	return nil
}

// RelationalFields returns the many-to-one fields of name that need resolution.
func (i *Inspector) RelationalFields(ctx context.Context, name string) []model.FieldDescriptor {
	if desc, ok := i.GetModel(ctx, name); ok {
		return desc.RelationalFields()
	}
	return nil
}

// ExportableFields returns the exportable fields of name.
func (i *Inspector) ExportableFields(ctx context.Context, name string) []model.FieldDescriptor {
	if desc, ok := i.GetModel(ctx, name); ok {
		return desc.ExportableFields()
	}
	return nil
}

// Field returns one field descriptor.
func (i *Inspector) Field(ctx context.Context, modelName, field string) (model.FieldDescriptor, bool) {
	desc, ok := i.GetModel(ctx, modelName)
	if !ok {
		return model.FieldDescriptor{}, false
	}
	return desc.Field(field)
}

// discover builds a descriptor from live metadata.
func (i *Inspector) discover(ctx context.Context, name string) (*model.ModelDescriptor, bool) {
	rows, err := i.gw.SearchRead(ctx, "ir.model", gateway.Eq("model", name), []string{"name", "model", "transient"}, 0, 1)
	if err != nil {
		logger.Warnf("Model '%s' unavailable: %v", name, err)
		return nil, false
	}
	if len(rows) == 0 {
		logger.Debugf("Model '%s' does not exist on the remote store.", name)
		return nil, false
	}
	info := rows[0]

	rawFields, err := i.gw.FieldsGet(ctx, name, gateway.FieldAttributes)
	if err != nil {
		logger.Warnf("Model '%s' unavailable: fields_get failed: %v", name, err)
		return nil, false
	}

	access := model.AccessRights{
		Create: i.checkAccess(ctx, name, gateway.OperationCreate),
		Read:   i.checkAccess(ctx, name, gateway.OperationRead),
		Write:  i.checkAccess(ctx, name, gateway.OperationWrite),
		Unlink: i.checkAccess(ctx, name, gateway.OperationUnlink),
	}

	fields := i.classifier.ClassifyAll(name, rawFields)
	i.enrich(ctx, name, fields)

	label, _ := info["name"].(string)
	if label == "" {
		label = name
	}
	transient, _ := info["transient"].(bool)

	desc := model.NewModelDescriptor(name, label, transient, access, fields)
	logger.Debugf("Discovered model '%s': %d fields, %d importable.", name, desc.FieldCount(), len(desc.ImportableFields()))
	return desc, true
}

func (i *Inspector) checkAccess(ctx context.Context, name string, op gateway.Operation) bool {
	ok, err := i.gw.CheckAccessRights(ctx, name, op)
	if err != nil {
		logger.Debugf("Access check '%s' on '%s' failed, assuming denied: %v", op, name, err)
		return false
	}
	return ok
}

// enrich flags fields defined through the remote UI (state "manual") as
// custom extensions. ir.model.fields may be unreadable; that is not an error.
func (i *Inspector) enrich(ctx context.Context, name string, fields []model.FieldDescriptor) {
	rows, err := i.gw.SearchRead(ctx, "ir.model.fields", gateway.Eq("model", name), []string{"name", "ttype", "state", "store", "compute"}, 0, 0)
	if err != nil {
		logger.Debugf("ir.model.fields not readable for '%s': %v", name, err)
		return
	}
	manual := make(map[string]bool)
	for _, r := range rows {
		if state, _ := r["state"].(string); state == "manual" {
			if fieldName, ok := r["name"].(string); ok {
				manual[fieldName] = true
			}
		}
	}
	for idx := range fields {
		if manual[fields[idx].Name] {
			fields[idx] = fields[idx].AsCustomExtension()
		}
	}
}

// liveIdentity returns the store's version and installed extensions,
// memoized until the next Refresh.
func (i *Inspector) liveIdentity(ctx context.Context) (*storeIdentity, error) {
	i.identityMu.Lock()
	defer i.identityMu.Unlock()
	if i.identity != nil {
		return i.identity, nil
	}

	info, err := i.gw.Version(ctx)
	if err != nil {
		return nil, err
	}
	version := info.ServerVersion
	if version == "" {
		version = "unknown"
	}

	var exts []model.Extension
	rows, err := i.gw.SearchRead(ctx, "ir.module.module", gateway.Eq("state", "installed"), []string{"name", "installed_version"}, 0, 0)
	if err != nil {
		logger.Debugf("ir.module.module not readable, fingerprinting an empty extension set: %v", err)
	} else {
		for _, r := range rows {
			n, _ := r["name"].(string)
			v, _ := r["installed_version"].(string)
			exts = append(exts, model.Extension{Name: n, Version: v})
		}
	}

	i.identity = &storeIdentity{version: version, versionInfo: info, extensions: exts}
	return i.identity, nil
}

func (i *Inspector) loadFromCache(ctx context.Context, name string) (*model.ModelDescriptor, bool) {
	if i.cache == nil {
		return nil, false
	}
	id, err := i.liveIdentity(ctx)
	if err != nil {
		logger.Debugf("Skipping schema cache: version lookup failed: %v", err)
		return nil, false
	}
	cached, ok := i.cache.Load(ctx, i.opts.StoreID, id.version, id.extensions)
	if !ok {
		return nil, false
	}
	desc, ok := cached[name]
	if !ok {
		return nil, false
	}

	i.mu.Lock()
	for n, d := range cached {
		if _, known := i.models[n]; !known {
			i.models[n] = d
		}
	}
	desc = i.models[name]
	i.mu.Unlock()
	return desc, true
}

// saveToCache writes the whole current descriptor set. Failures are logged.
func (i *Inspector) saveToCache(ctx context.Context) {
	if i.cache == nil {
		return
	}
	i.saveMu.Lock()
	defer i.saveMu.Unlock()

	id, err := i.liveIdentity(ctx)
	if err != nil {
		logger.Warnf("Schema cache not saved: version lookup failed: %v", err)
		return
	}

	i.mu.RLock()
	snapshot := make(map[string]*model.ModelDescriptor, len(i.models))
	for n, d := range i.models {
		snapshot[n] = d
	}
	i.mu.RUnlock()

	info := id.versionInfo
	if err := i.cache.Save(ctx, i.opts.StoreID, id.version, &info, id.extensions, snapshot); err != nil {
		logger.Warnf("Schema cache not saved: %v", err)
	}
}
