package collector

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/iamlens/iamlens/internal/metrics"
	"github.com/iamlens/iamlens/internal/record"
)

// fetchMode says how an endpoint's records are retrieved.
type fetchMode int

const (
	fetchSingle      fetchMode = iota // one request, the whole document is the record
	fetchList                         // one request, items extracted from the body
	fetchPagedOffset                  // limit/offset pages with a total count
	fetchPagedSCIM                    // SCIM startIndex/count pages with totalResults
)

type endpoint struct {
	DataType string
	Path     string
	ItemsKey string
	Mode     fetchMode
}

// Endpoint paths and page-item keys follow the upstream Verify API. The
// SCIM, dynamic-group (ABAC), and attribute-function resources sit outside
// the versioned API base.
var endpoints = []endpoint{
	{DataType: record.TypeApplications, Path: "applications", ItemsKey: "applications", Mode: fetchPagedOffset},
	{DataType: record.TypeFederations, Path: "federations", ItemsKey: "federations", Mode: fetchPagedOffset},
	{DataType: record.TypeMFAConfigurations, Path: "authnmethods", ItemsKey: "mfamethods", Mode: fetchPagedOffset},
	{DataType: record.TypeAttributes, Path: "attributes", ItemsKey: "attributes", Mode: fetchPagedOffset},
	{DataType: record.TypeAttributeFunctions, Path: "/v1.0/attributefunctions", ItemsKey: "attributeFunctions", Mode: fetchList},
	{DataType: record.TypeIdentitySources, Path: "identitysources", ItemsKey: "identitySources", Mode: fetchPagedOffset},
	{DataType: record.TypeAPIClients, Path: "apiclients", ItemsKey: "apiClients", Mode: fetchPagedOffset},
	{DataType: record.TypeGroups, Path: "/v2.0/Groups", ItemsKey: "Resources", Mode: fetchPagedSCIM},
	{DataType: record.TypeDynamicGroups, Path: "/v1.0/dynamicgroups", ItemsKey: "dynamicGroups", Mode: fetchPagedOffset},
	{DataType: record.TypeSCIMCapabilities, Path: "/v2.0/SCIM/capabilities", Mode: fetchSingle},
}

// Runner collects every data type for one environment into JSONL files.
type Runner struct {
	Client        *Client
	Writer        *JSONLWriter
	EnvID         string
	PageSize      int
	DetailWorkers int
	Logger        *slog.Logger
}

// RunOnce collects all endpoints plus per-item details for applications and
// dynamic groups. Endpoint failures are independent: a failing data type is
// logged and skipped, the rest still run. The joined error reports
// everything that failed.
func (r *Runner) RunOnce(ctx context.Context) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error
	var applications, dynamicGroups []json.RawMessage
	appsFetched, dynamicFetched := false, false

	for _, ep := range endpoints {
		items, err := r.fetchEndpoint(ctx, ep)
		if err != nil {
			logger.Error("collection failed for data type", "env", r.EnvID, "data_type", ep.DataType, "err", err)
			metrics.CollectorFetchesTotal.WithLabelValues(ep.DataType, "error").Inc()
			errs = append(errs, err)
			continue
		}
		if err := r.Writer.WriteFile(r.EnvID, ep.DataType, items); err != nil {
			errs = append(errs, err)
			continue
		}
		metrics.CollectorFetchesTotal.WithLabelValues(ep.DataType, "ok").Inc()
		metrics.CollectorRecordsWritten.WithLabelValues(ep.DataType).Add(float64(len(items)))
		logger.Info("collected data type", "env", r.EnvID, "data_type", ep.DataType, "records", len(items))

		switch ep.DataType {
		case record.TypeApplications:
			applications, appsFetched = items, true
		case record.TypeDynamicGroups:
			dynamicGroups, dynamicFetched = items, true
		}
	}

	// Detail files track their parent list: they are rewritten whenever the
	// parent fetch succeeded, so an emptied list never leaves stale details
	// behind.
	if appsFetched {
		if err := r.collectDetails(ctx, record.TypeApplicationDetails, itemIDs(applications), r.fetchApplicationDetail, logger); err != nil {
			errs = append(errs, err)
		}
	}
	if dynamicFetched {
		if err := r.collectDetails(ctx, record.TypeDynamicGroupsDetail, itemIDs(dynamicGroups), r.fetchDynamicGroupDetail, logger); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Runner) fetchEndpoint(ctx context.Context, ep endpoint) ([]json.RawMessage, error) {
	switch ep.Mode {
	case fetchSingle:
		body, err := r.Client.GetJSON(ctx, ep.Path, nil)
		if err != nil {
			return nil, err
		}
		return []json.RawMessage{json.RawMessage(body)}, nil
	case fetchList:
		body, err := r.Client.GetJSON(ctx, ep.Path, nil)
		if err != nil {
			return nil, err
		}
		return extractItems(body, ep.ItemsKey), nil
	case fetchPagedSCIM:
		return r.fetchSCIMPages(ctx, ep)
	default:
		return r.fetchOffsetPages(ctx, ep)
	}
}

func (r *Runner) fetchOffsetPages(ctx context.Context, ep endpoint) ([]json.RawMessage, error) {
	var items []json.RawMessage
	offset := 0
	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(r.PageSize))
		query.Set("offset", strconv.Itoa(offset))

		body, err := r.Client.GetJSON(ctx, ep.Path, query)
		if err != nil {
			return nil, err
		}

		page := extractItems(body, ep.ItemsKey)
		if len(page) == 0 {
			break
		}
		items = append(items, page...)

		total := gjson.GetBytes(body, "total").Int()
		if total == 0 || int64(offset+r.PageSize) >= total {
			break
		}
		offset += r.PageSize
	}
	return items, nil
}

// fetchSCIMPages pages through a SCIM list resource, which counts from a
// 1-based startIndex and reports totalResults instead of total.
func (r *Runner) fetchSCIMPages(ctx context.Context, ep endpoint) ([]json.RawMessage, error) {
	var items []json.RawMessage
	startIndex := 1
	for {
		query := url.Values{}
		query.Set("count", strconv.Itoa(r.PageSize))
		query.Set("startIndex", strconv.Itoa(startIndex))

		body, err := r.Client.GetJSON(ctx, ep.Path, query)
		if err != nil {
			return nil, err
		}

		page := extractItems(body, ep.ItemsKey)
		if len(page) == 0 {
			break
		}
		items = append(items, page...)

		total := gjson.GetBytes(body, "totalResults").Int()
		if total == 0 || int64(startIndex+r.PageSize) > total {
			break
		}
		startIndex += r.PageSize
	}
	return items, nil
}

// collectDetails fetches one detail document per id in parallel and writes
// the successful subset. A failing id is logged and skipped rather than
// aborting the rest, mirroring the list endpoints' independence. The file
// is written even when there are no ids, replacing details from a previous
// run.
func (r *Runner) collectDetails(ctx context.Context, dataType string, ids []string, fetch func(context.Context, string) (json.RawMessage, error), logger *slog.Logger) error {
	results, err := parallelCollect(ctx, ids, r.DetailWorkers, func(ctx context.Context, id string) (json.RawMessage, error) {
		detail, err := fetch(ctx, id)
		if err != nil {
			logger.Warn("detail fetch failed, skipping", "env", r.EnvID, "data_type", dataType, "id", id, "err", err)
			return nil, nil
		}
		return detail, nil
	})
	if err != nil {
		metrics.CollectorFetchesTotal.WithLabelValues(dataType, "error").Inc()
		return err
	}

	details := make([]json.RawMessage, 0, len(results))
	for _, res := range results {
		if res.Err == nil && res.Value != nil {
			details = append(details, res.Value)
		}
	}
	if err := r.Writer.WriteFile(r.EnvID, dataType, details); err != nil {
		return err
	}
	metrics.CollectorFetchesTotal.WithLabelValues(dataType, "ok").Inc()
	metrics.CollectorRecordsWritten.WithLabelValues(dataType).Add(float64(len(details)))
	logger.Info("collected details", "env", r.EnvID, "data_type", dataType, "records", len(details), "of", len(ids))
	return nil
}

func (r *Runner) fetchApplicationDetail(ctx context.Context, appID string) (json.RawMessage, error) {
	body, err := r.Client.GetJSON(ctx, "applications/"+appID, nil)
	if err != nil {
		return nil, err
	}

	detail := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, err
	}

	// Sub-resources are optional: a 404 just leaves the key out.
	if entitlements, err := r.Client.GetJSON(ctx, "applications/"+appID+"/entitlements", nil); err == nil {
		detail["entitlements"] = json.RawMessage(entitlements)
	}
	if sso, err := r.Client.GetJSON(ctx, "applications/"+appID+"/sso", nil); err == nil {
		detail["sso"] = json.RawMessage(sso)
	}

	return json.Marshal(detail)
}

func (r *Runner) fetchDynamicGroupDetail(ctx context.Context, groupID string) (json.RawMessage, error) {
	body, err := r.Client.GetJSON(ctx, "/v1.0/dynamicgroups/"+groupID, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// itemIDs pulls the "id" field from each list item; items without one are
// skipped.
func itemIDs(items []json.RawMessage) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if id := gjson.GetBytes(item, "id").String(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// extractItems pulls the page's item list out of a response body, trying
// the endpoint's documented key first and falling back to common shapes.
func extractItems(body []byte, itemsKey string) []json.RawMessage {
	candidates := []string{itemsKey, "items"}
	for _, key := range candidates {
		if key == "" {
			continue
		}
		result := gjson.GetBytes(body, key)
		if result.IsArray() {
			return rawArray(result)
		}
	}
	if top := gjson.ParseBytes(body); top.IsArray() {
		return rawArray(top)
	}
	return nil
}

func rawArray(result gjson.Result) []json.RawMessage {
	arr := result.Array()
	out := make([]json.RawMessage, 0, len(arr))
	for _, item := range arr {
		out = append(out, json.RawMessage(item.Raw))
	}
	return out
}
