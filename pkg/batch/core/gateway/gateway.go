// Package gateway defines the narrow RPC surface of the remote store that the
// schema inspector, the identity resolver and the batch writer consume.
//
// Every method may fail with an *exception.BatchError whose Kind tells a
// retryable connectivity fault (exception.KindConnectivity) apart from a
// rejection of the data (exception.KindApplication) or a fatal authentication
// failure (exception.KindAuthentication).
package gateway

import (
	"context"
	"encoding/json"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
)

// VersionInfo is the answer of the remote version call.
type VersionInfo = model.VersionInfo

// RawField is the untyped field metadata returned by FieldsGet, keyed by
// attribute name ("type", "required", "relation", ...).
type RawField map[string]interface{}

// Operation is an access-right operation.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationWrite  Operation = "write"
	OperationUnlink Operation = "unlink"
)

// Operations lists the four access-right operations in check order.
var Operations = []Operation{OperationCreate, OperationRead, OperationWrite, OperationUnlink}

// Term is one (field, operator, value) condition of a search domain.
type Term struct {
	Field    string
	Operator string
	Value    interface{}
}

// MarshalJSON encodes the term as the triplet the remote store expects.
func (t Term) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{t.Field, t.Operator, t.Value})
}

// Domain is a conjunction of terms. A nil Domain matches every record.
type Domain []Term

// MarshalJSON encodes a nil Domain as an empty list rather than null.
func (d Domain) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Term(d))
}

// Eq returns a one-term equality domain.
func Eq(field string, value interface{}) Domain {
	return Domain{{Field: field, Operator: "=", Value: value}}
}

// And appends a term and returns the extended domain.
func (d Domain) And(field, operator string, value interface{}) Domain {
	out := make(Domain, 0, len(d)+1)
	out = append(out, d...)
	return append(out, Term{Field: field, Operator: operator, Value: value})
}

// FieldAttributes is the fixed attribute list requested from FieldsGet.
var FieldAttributes = []string{
	"string", "type", "required", "readonly", "relation", "relation_field",
	"store", "compute", "inverse", "related", "company_dependent", "help",
	"size", "digits", "selection", "domain", "context",
}

// Gateway is the remote store contract.
type Gateway interface {
	// Authenticate logs in and returns the remote user id.
	Authenticate(ctx context.Context) (int64, error)
	// Version returns the server version.
	Version(ctx context.Context) (VersionInfo, error)
	// FieldsGet returns raw field metadata restricted to attributes.
	FieldsGet(ctx context.Context, model string, attributes []string) (map[string]RawField, error)
	// CheckAccessRights reports whether the current user may perform op.
	CheckAccessRights(ctx context.Context, model string, op Operation) (bool, error)
	// SearchRead returns the matching records ordered by id. A limit of 0
	// means no limit.
	SearchRead(ctx context.Context, model string, domain Domain, fields []string, offset, limit int) ([]model.Record, error)
	// Search returns the ids of matching records ordered by id.
	Search(ctx context.Context, model string, domain Domain, offset, limit int) ([]int64, error)
	// Read returns the given fields of the given records.
	Read(ctx context.Context, model string, ids []int64, fields []string) ([]model.Record, error)
	// CreateMany creates records and returns their ids in input order.
	CreateMany(ctx context.Context, model string, records []map[string]interface{}) ([]int64, error)
	// Write updates records with the same values.
	Write(ctx context.Context, model string, ids []int64, values map[string]interface{}) (bool, error)
	// Unlink deletes records.
	Unlink(ctx context.Context, model string, ids []int64) (bool, error)
}
