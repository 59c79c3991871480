// Package export serializes the aggregated view into a downloadable document.
package export

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/iamlens/iamlens/internal/aggregate"
)

// PrimaryCategories are always present in the export summary, even when empty.
var PrimaryCategories = []string{"applications", "federations", "mfaConfigurations", "attributes"}

// Summary describes the exported dataset.
type Summary struct {
	Environments   []string       `json:"environments"`
	CategoryCounts map[string]int `json:"categoryCounts"`
	TotalRecords   int            `json:"totalRecords"`
}

// Document is the downloadable export payload.
type Document struct {
	ID          string         `json:"id"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Summary     Summary        `json:"summary"`
	Categories  aggregate.View `json:"categories"`
}

// Build assembles an export document from the current view and selection.
func Build(view aggregate.View, selectedEnvs []string) Document {
	counts := make(map[string]int, len(view))
	total := 0
	for _, category := range PrimaryCategories {
		counts[category] = 0
	}
	for category, records := range view {
		counts[category] = len(records)
		total += len(records)
	}

	categories := view
	if categories == nil {
		categories = aggregate.View{}
	}

	envs := append([]string(nil), selectedEnvs...)
	if envs == nil {
		envs = []string{}
	}

	return Document{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Summary: Summary{
			Environments:   envs,
			CategoryCounts: counts,
			TotalRecords:   total,
		},
		Categories: categories,
	}
}

// CategoryNames lists the document's category names in stable order.
func (d Document) CategoryNames() []string {
	names := make([]string, 0, len(d.Categories))
	for name := range d.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
