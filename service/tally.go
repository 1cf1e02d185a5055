package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"dualvote-backend/encryption"
	"dualvote-backend/models"
)

// TallyService aggregates the anonymous ballots of a closed election into
// the final FPTP winners and PR seat distribution. Ballots are decrypted in
// memory only, one at a time, and the plaintext choices are never persisted
// or logged.
type TallyService struct {
	store     Store
	crypto    *encryption.CryptoService
	keystore  *encryption.Keystore
	elections *ElectionService
	metrics   *MetricsCollector

	// mu serializes whole tally runs: the Closed check and the flip to
	// Tallied form one step, so concurrent calls cannot both pass the
	// precondition.
	mu sync.Mutex
}

func NewTallyService(store Store, cryptoService *encryption.CryptoService,
	keystore *encryption.Keystore, elections *ElectionService, metrics *MetricsCollector) *TallyService {

	return &TallyService{
		store:     store,
		crypto:    cryptoService,
		keystore:  keystore,
		elections: elections,
		metrics:   metrics,
	}
}

// TallyElection tallies a Closed election and transitions it to Tallied.
// Calling it in any other state is a programming error reported as
// ErrTallyPrecondition.
func (ts *TallyService) TallyElection(electionID string) (*models.TallyResult, error) {
	started := time.Now()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	election, err := ts.store.Election(electionID)
	if err != nil {
		return nil, err
	}
	if election.Status != models.StatusClosed {
		return nil, fmt.Errorf("%w: election %s is %s", models.ErrTallyPrecondition, electionID, election.Status)
	}

	privateKey, err := ts.keystore.ElectionKey(electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load election key for tally: %w", err)
	}

	ballots := ts.store.Ballots(electionID)

	fptpCounts := make(map[string]map[string]int) // constituency -> candidate -> votes
	prCounts := make(map[string]int)              // party -> votes
	counted := 0

	for _, ballot := range ballots {
		fptpPlain, err := ts.crypto.DecryptSelection(privateKey, ballot.EncryptedFPTP)
		if err != nil {
			log.Warnf("Skipping undecryptable FPTP choice on ballot %s", ballot.BallotID)
			continue
		}
		prPlain, err := ts.crypto.DecryptSelection(privateKey, ballot.EncryptedPR)
		if err != nil {
			log.Warnf("Skipping undecryptable PR choice on ballot %s", ballot.BallotID)
			continue
		}

		var fptp models.FPTPSelection
		var pr models.PRSelection
		if err := json.Unmarshal(fptpPlain, &fptp); err != nil {
			log.Warnf("Skipping malformed FPTP choice on ballot %s", ballot.BallotID)
			continue
		}
		if err := json.Unmarshal(prPlain, &pr); err != nil {
			log.Warnf("Skipping malformed PR choice on ballot %s", ballot.BallotID)
			continue
		}

		candidate := election.Candidate(fptp.CandidateID)
		if candidate == nil || candidate.Constituency != fptp.Constituency {
			log.Warnf("Skipping ballot %s with unknown candidate selection", ballot.BallotID)
			continue
		}
		if election.Party(pr.PartyID) == nil {
			log.Warnf("Skipping ballot %s with unknown party selection", ballot.BallotID)
			continue
		}

		if fptpCounts[fptp.Constituency] == nil {
			fptpCounts[fptp.Constituency] = make(map[string]int)
		}
		fptpCounts[fptp.Constituency][fptp.CandidateID]++
		prCounts[pr.PartyID]++
		counted++
	}

	result := &models.TallyResult{
		ElectionID:   electionID,
		TalliedAt:    time.Now().UTC(),
		TotalBallots: counted,
		FPTP:         ts.fptpResults(election, fptpCounts),
		PR:           ts.prResults(election, prCounts),
		TotalPRSeats: election.TotalPRSeats,
	}

	if err := ts.store.SaveTallyResult(result); err != nil {
		return nil, fmt.Errorf("failed to persist tally result: %w", err)
	}
	if err := ts.elections.MarkTallied(electionID); err != nil {
		return nil, err
	}

	ts.metrics.RecordTally(time.Since(started))
	log.Infof("Tallied election %s: %d ballots across %d constituencies", electionID, counted, len(election.Constituencies))
	return result, nil
}

// Results returns the persisted snapshot of a tallied election. Partial or
// in-progress results are never exposed.
func (ts *TallyService) Results(electionID string) (*models.TallyResult, error) {
	election, err := ts.store.Election(electionID)
	if err != nil {
		return nil, err
	}
	if election.Status != models.StatusTallied {
		return nil, fmt.Errorf("%w: election %s is %s", models.ErrTallyPrecondition, electionID, election.Status)
	}
	result, ok := ts.store.TallyResult(electionID)
	if !ok {
		return nil, fmt.Errorf("tally result missing for election %s", electionID)
	}
	return result, nil
}

// fptpResults computes per-constituency plurality winners in the election's
// constituency order. Ties break to the lexicographically lowest candidate
// ID so results are reproducible regardless of map iteration order.
func (ts *TallyService) fptpResults(election *models.Election, counts map[string]map[string]int) []models.ConstituencyResult {
	out := make([]models.ConstituencyResult, 0, len(election.Constituencies))
	for _, constituency := range election.Constituencies {
		votes := counts[constituency]
		if votes == nil {
			votes = make(map[string]int)
		}

		turnout := 0
		winnerID := ""
		winnerVotes := -1
		candidates := election.CandidatesByConstituency(constituency)
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].CandidateID < candidates[j].CandidateID })
		for _, c := range candidates {
			n := votes[c.CandidateID]
			turnout += n
			if n > winnerVotes {
				winnerID = c.CandidateID
				winnerVotes = n
			}
		}
		if turnout == 0 {
			winnerID = ""
		}

		out = append(out, models.ConstituencyResult{
			Constituency: constituency,
			Votes:        votes,
			WinnerID:     winnerID,
			Turnout:      turnout,
		})
	}
	return out
}

// prResults computes the nationwide seat distribution, ordered by seats,
// then votes, then party ID.
func (ts *TallyService) prResults(election *models.Election, counts map[string]int) []models.PartyResult {
	totalVotes := 0
	for _, n := range counts {
		totalVotes += n
	}
	seats := AllocateSeatsLargestRemainder(counts, election.TotalPRSeats)

	out := make([]models.PartyResult, 0, len(election.Parties))
	for _, p := range election.Parties {
		votes := counts[p.PartyID]
		share := 0.0
		if totalVotes > 0 {
			share = float64(votes) / float64(totalVotes) * 100
		}
		out = append(out, models.PartyResult{
			PartyID:   p.PartyID,
			Votes:     votes,
			VoteShare: share,
			Seats:     seats[p.PartyID],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seats != out[j].Seats {
			return out[i].Seats > out[j].Seats
		}
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].PartyID < out[j].PartyID
	})
	return out
}

// AllocateSeatsLargestRemainder apportions totalSeats among parties by the
// largest-remainder method with the Hare quota, in integer arithmetic:
// party i first receives floor(votes_i * S / total), then the leftover
// seats go to the largest remainders votes_i * S mod total. Remainder ties
// break by higher vote count, then lexicographically lower party ID.
// Parties with zero votes never receive a seat. Allocated seats sum to
// exactly totalSeats whenever any votes were cast.
func AllocateSeatsLargestRemainder(votes map[string]int, totalSeats int) map[string]int {
	allocation := make(map[string]int, len(votes))
	totalVotes := 0
	for party, n := range votes {
		allocation[party] = 0
		totalVotes += n
	}
	if totalVotes == 0 || totalSeats <= 0 {
		return allocation
	}

	type remainder struct {
		party string
		rem   int
		votes int
	}

	allocated := 0
	remainders := make([]remainder, 0, len(votes))
	for party, n := range votes {
		if n == 0 {
			continue
		}
		base := n * totalSeats / totalVotes
		allocation[party] = base
		allocated += base
		remainders = append(remainders, remainder{
			party: party,
			rem:   n * totalSeats % totalVotes,
			votes: n,
		})
	}

	sort.Slice(remainders, func(i, j int) bool {
		if remainders[i].rem != remainders[j].rem {
			return remainders[i].rem > remainders[j].rem
		}
		if remainders[i].votes != remainders[j].votes {
			return remainders[i].votes > remainders[j].votes
		}
		return remainders[i].party < remainders[j].party
	})

	for i := 0; allocated < totalSeats && i < len(remainders); i++ {
		allocation[remainders[i].party]++
		allocated++
	}
	return allocation
}
