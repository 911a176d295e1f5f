package detector

import (
	"sort"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// GroupSnapshots splits one game's snapshot batch into per (market, outcome)
// groups, each sorted by observation time ascending. Group order is
// deterministic (market then outcome).
func GroupSnapshots(snapshots []models.OddsSnapshot) []models.OutcomeGroup {
	byKey := make(map[string]*models.OutcomeGroup)
	keys := make([]string, 0)

	for _, s := range snapshots {
		key := s.Market + "|" + s.OutcomeKey
		group, ok := byKey[key]
		if !ok {
			group = &models.OutcomeGroup{
				GameID:     s.GameID,
				SportKey:   s.SportKey,
				Market:     s.Market,
				MarketType: models.ClassifyMarket(s.Market),
				OutcomeKey: s.OutcomeKey,
			}
			byKey[key] = group
			keys = append(keys, key)
		}
		group.Snapshots = append(group.Snapshots, s)
	}

	sort.Strings(keys)

	groups := make([]models.OutcomeGroup, 0, len(keys))
	for _, key := range keys {
		group := byKey[key]
		sort.SliceStable(group.Snapshots, func(i, j int) bool {
			return group.Snapshots[i].ObservedAt.Before(group.Snapshots[j].ObservedAt)
		})
		groups = append(groups, *group)
	}
	return groups
}
