package models

import "time"

// ConstituencyResult is the FPTP outcome for one constituency. Votes maps
// candidate ID to decrypted vote count; WinnerID is the plurality winner
// with ties broken by lexicographically lowest candidate ID.
type ConstituencyResult struct {
	Constituency string         `json:"constituency"`
	Votes        map[string]int `json:"votes"`
	WinnerID     string         `json:"winner_id"`
	Turnout      int            `json:"turnout"`
}

// PartyResult is the nationwide PR outcome for one party.
type PartyResult struct {
	PartyID   string  `json:"party_id"`
	Votes     int     `json:"votes"`
	VoteShare float64 `json:"vote_share"`
	Seats     int     `json:"seats"`
}

// TallyResult is the immutable snapshot produced when a closed election is
// tallied. FPTP follows the election's constituency order; PR is sorted by
// seats, then votes, then party ID.
type TallyResult struct {
	ElectionID   string               `json:"election_id"`
	TalliedAt    time.Time            `json:"tallied_at"`
	TotalBallots int                  `json:"total_ballots"`
	FPTP         []ConstituencyResult `json:"fptp"`
	PR           []PartyResult        `json:"pr"`
	TotalPRSeats int                  `json:"total_pr_seats"`
}
