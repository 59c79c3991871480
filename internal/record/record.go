// Package record holds the collector record envelope and the JSONL loader.
package record

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// ErrNotObject marks a line that is valid JSON but not a JSON object, such
// as a bare array or string.
var ErrNotObject = errors.New("not a JSON object")

// Known data types, one JSONL resource each per environment.
const (
	TypeApplications        = "applications"
	TypeApplicationDetails  = "application_details"
	TypeFederations         = "federations"
	TypeMFAConfigurations   = "mfa_configurations"
	TypeAttributes          = "attributes"
	TypeAttributeFunctions  = "attribute_functions"
	TypeIdentitySources     = "identity_sources"
	TypeAPIClients          = "api_clients"
	TypeGroups              = "groups"
	TypeDynamicGroups       = "dynamic_groups"
	TypeDynamicGroupsDetail = "dynamic_groups_detail"
	TypeSCIMCapabilities    = "scim_capabilities"
)

// KnownDataTypes returns the fixed set of recognized data types in stable order.
func KnownDataTypes() []string {
	return []string{
		TypeApplications,
		TypeApplicationDetails,
		TypeFederations,
		TypeMFAConfigurations,
		TypeAttributes,
		TypeAttributeFunctions,
		TypeIdentitySources,
		TypeAPIClients,
		TypeGroups,
		TypeDynamicGroups,
		TypeDynamicGroupsDetail,
		TypeSCIMCapabilities,
	}
}

// IsKnownDataType reports whether name is one of the recognized data types.
func IsKnownDataType(name string) bool {
	for _, t := range KnownDataTypes() {
		if t == name {
			return true
		}
	}
	return false
}

// Record is one parsed JSONL line. The collectors wrap payloads as
// {"fetch_timestamp": ..., "data": {...}}, but bare objects occur in the
// wild too, so Payload unwraps defensively.
type Record struct {
	FetchTimestamp string
	raw            json.RawMessage
}

// Parse parses a single JSONL line into a Record.
func Parse(line []byte) (Record, error) {
	var probe struct {
		FetchTimestamp string `json:"fetch_timestamp"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		if json.Valid(line) {
			return Record{}, ErrNotObject
		}
		return Record{}, err
	}
	raw := make(json.RawMessage, len(line))
	copy(raw, line)
	return Record{FetchTimestamp: probe.FetchTimestamp, raw: raw}, nil
}

// Raw returns the full original JSON line.
func (r Record) Raw() json.RawMessage {
	return r.raw
}

// Payload returns the data object when the record uses the collector
// envelope, or the record itself when it does not.
func (r Record) Payload() json.RawMessage {
	data := gjson.GetBytes(r.raw, "data")
	if data.Exists() && (data.IsObject() || data.IsArray()) {
		return json.RawMessage(data.Raw)
	}
	return r.raw
}

// Field extracts a dot-path value from the record payload.
func (r Record) Field(path string) gjson.Result {
	return gjson.GetBytes(r.Payload(), path)
}
