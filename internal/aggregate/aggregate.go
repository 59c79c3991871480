// Package aggregate merges cached environment records into one tagged view.
package aggregate

import (
	"encoding/json"
	"sort"

	"github.com/iamlens/iamlens/internal/cache"
	"github.com/iamlens/iamlens/internal/record"
	"github.com/iamlens/iamlens/internal/registry"
)

// categoryNames maps data types to view category names. Unknown data types
// pass through under their own name so new collector outputs show up
// without a code change.
var categoryNames = map[string]string{
	record.TypeApplications:        "applications",
	record.TypeApplicationDetails:  "applicationDetails",
	record.TypeFederations:         "federations",
	record.TypeMFAConfigurations:   "mfaConfigurations",
	record.TypeAttributes:          "attributes",
	record.TypeAttributeFunctions:  "attributeFunctions",
	record.TypeIdentitySources:     "identitySources",
	record.TypeAPIClients:          "apiClients",
	record.TypeGroups:              "groups",
	record.TypeDynamicGroups:       "dynamicGroups",
	record.TypeDynamicGroupsDetail: "dynamicGroupsDetail",
	record.TypeSCIMCapabilities:    "scimCapabilities",
}

// CategoryName returns the view category for a data type.
func CategoryName(dataType string) string {
	if name, ok := categoryNames[dataType]; ok {
		return name
	}
	return dataType
}

// TaggedRecord is one record annotated with its source environment.
type TaggedRecord struct {
	EnvironmentID     string          `json:"_environmentId"`
	EnvironmentName   string          `json:"_environmentName"`
	EnvironmentDomain string          `json:"_environmentDomain"`
	FetchTimestamp    string          `json:"fetchTimestamp,omitempty"`
	Data              json.RawMessage `json:"data"`
}

// View is the merged dataset keyed by category name. It is rebuilt from
// scratch on every change; consumers never see it mutated in place.
type View map[string][]TaggedRecord

// Selection is the per-environment data-type enablement the aggregator
// consumes, in environment-selection order.
type Selection struct {
	EnvID   string
	Enabled map[string]bool
}

// Aggregate builds a fresh View from the cache for the given selections.
// Only environments whose entry is complete contribute; loading and error
// environments are excluded rather than waited on. Ordering is selection
// order, then record order within each environment.
func Aggregate(entries map[string]cache.Entry, selections []Selection, lookup func(string) (registry.Environment, bool)) View {
	view := View{}
	for _, sel := range selections {
		entry, ok := entries[sel.EnvID]
		if !ok || entry.Status != cache.StatusComplete {
			continue
		}
		env, ok := lookup(sel.EnvID)
		if !ok {
			continue
		}
		for _, dataType := range orderedDataTypes(entry.Records) {
			if !sel.Enabled[dataType] {
				continue
			}
			category := CategoryName(dataType)
			for _, rec := range entry.Records[dataType] {
				view[category] = append(view[category], TaggedRecord{
					EnvironmentID:     env.ID,
					EnvironmentName:   env.Name,
					EnvironmentDomain: env.URLDomain,
					FetchTimestamp:    rec.FetchTimestamp,
					Data:              rec.Payload(),
				})
			}
		}
	}
	return view
}

// orderedDataTypes returns the entry's data types with the known set first
// in its fixed order, then any unknown types sorted after it. Deterministic
// output keeps the visual layout and the tests stable.
func orderedDataTypes(records map[string][]record.Record) []string {
	out := make([]string, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, dt := range record.KnownDataTypes() {
		if _, ok := records[dt]; ok {
			out = append(out, dt)
			seen[dt] = true
		}
	}
	extras := make([]string, 0)
	for dt := range records {
		if !seen[dt] {
			extras = append(extras, dt)
		}
	}
	sort.Strings(extras)
	return append(out, extras...)
}
