package auction

import "sort"

// DetectOutcomes partitions a round's bids into outright winners and tie
// groups. For every player with at least one bid, the maximum amount is
// found; a sole bid at that amount wins, two or more bids at that amount
// form a TieGroup and the player gets no allocation. Players without bids
// produce nothing.
//
// Output is deterministic: winners and ties ordered by player id ascending,
// tied team ids sorted. Ties are never broken here.
func DetectOutcomes(bids []Bid) ([]Allocation, []TieGroup) {
	byPlayer := make(map[string][]Bid)
	for _, b := range bids {
		byPlayer[b.PlayerID] = append(byPlayer[b.PlayerID], b)
	}

	playerIDs := make([]string, 0, len(byPlayer))
	for id := range byPlayer {
		playerIDs = append(playerIDs, id)
	}
	sort.Strings(playerIDs)

	var winners []Allocation
	var ties []TieGroup
	for _, playerID := range playerIDs {
		group := byPlayer[playerID]
		max := group[0].Amount
		for _, b := range group[1:] {
			if b.Amount > max {
				max = b.Amount
			}
		}

		var topTeams []string
		for _, b := range group {
			if b.Amount == max {
				topTeams = append(topTeams, b.TeamID)
			}
		}

		if len(topTeams) == 1 {
			winners = append(winners, Allocation{
				PlayerID: playerID,
				TeamID:   topTeams[0],
				Amount:   max,
			})
			continue
		}
		sort.Strings(topTeams)
		ties = append(ties, TieGroup{
			PlayerID: playerID,
			Amount:   max,
			TeamIDs:  topTeams,
		})
	}
	return winners, ties
}
