package persist

import "log/slog"

// Selector is the subset of the selection store that restoration drives.
type Selector interface {
	Select(envID string) error
}

// Restore reapplies a previous selection at startup. Strategies run in
// strict priority order: the envs URL parameter first, then the local store
// (only when remember-selection is enabled), then nothing. The first
// strategy yielding at least one registered id wins; ids are selected
// sequentially so each cache load can be observed individually. Returns the
// ids actually selected.
func Restore(urlEnvs string, store *LocalStore, registered func(string) bool, sel Selector, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}

	if ids := DecodeSelection(urlEnvs, registered); len(ids) > 0 {
		return selectAll(ids, sel, logger, "url")
	}

	if store != nil && store.Preferences().RememberSelection {
		ids := filterIDs(store.LoadSelection(), registered)
		if len(ids) > 0 {
			return selectAll(ids, sel, logger, "local store")
		}
	}

	logger.Info("no stored selection to restore")
	return nil
}

func selectAll(ids []string, sel Selector, logger *slog.Logger, source string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := sel.Select(id); err != nil {
			logger.Warn("restoring environment failed", "env", id, "source", source, "err", err)
			continue
		}
		out = append(out, id)
	}
	logger.Info("selection restored", "source", source, "envs", out)
	return out
}

func filterIDs(ids []string, keep func(string) bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if keep != nil && !keep(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
