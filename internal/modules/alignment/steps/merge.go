package steps

import (
	"context"
	"strings"

	types "github.com/traceloom/traceloom-backend/internal/domain"
	"github.com/traceloom/traceloom-backend/internal/platform/llm"
	"github.com/traceloom/traceloom-backend/internal/platform/logger"
)

const mergeMaxTokens = 4096

type mergeProposal struct {
	Merges []struct {
		SourceConcepts    []string `json:"sourceConcepts"`
		MergedLabel       string   `json:"mergedLabel"`
		MergedDescription string   `json:"mergedDescription"`
	} `json:"merges"`
}

// MergeConceptsRound runs one consolidation round: asks the model which
// concepts to fuse, then reconciles the proposal against the actual concept
// set. The output set always accounts for exactly the same element ids as
// the input set; a mismatch fails the round.
func MergeConceptsRound(ctx context.Context, deps Deps, round MergeRound, concepts []types.Concept) (*types.MergeOutcome, error) {
	if len(concepts) == 0 {
		return &types.MergeOutcome{}, nil
	}

	prompt := buildMergePrompt(round, concepts)
	raw, err := deps.AI.Complete(ctx, prompt, mergeMaxTokens)
	if err != nil {
		return nil, &MergeParseError{Round: round.Number, Err: err}
	}

	var proposal mergeProposal
	if err := llm.DecodeObject(raw, &proposal); err != nil {
		return nil, &MergeParseError{Round: round.Number, Err: err}
	}

	outcome := reconcileMerges(deps.Log, proposal, concepts)

	wantD1, wantD2 := countIDs(concepts)
	gotD1, gotD2 := countOutcomeIDs(outcome)
	if wantD1 != gotD1 || wantD2 != gotD2 {
		return nil, &ConservationError{
			Round:  round.Number,
			WantD1: wantD1,
			WantD2: wantD2,
			GotD1:  gotD1,
			GotD2:  gotD2,
		}
	}

	return outcome, nil
}

// reconcileMerges applies a model proposal to the concept set.
//
// Rules, in order:
//   - labels resolve case-insensitively against the input concepts; unknown
//     labels are dropped silently (models hallucinate names)
//   - when several concepts share a label, each occurrence of that label in a
//     group consumes the next unconsumed one, so same-named concepts from the
//     two datasets stay distinct and mergeable
//   - a concept consumed by an earlier group cannot join a later one
//     (first-wins)
//   - a group that resolves to fewer than 2 concepts is discarded and its
//     lone member, if any, passes through unmerged
//   - every concept no group consumed is carried forward unchanged
func reconcileMerges(log *logger.Logger, proposal mergeProposal, concepts []types.Concept) *types.MergeOutcome {
	type candidate struct {
		concept *types.Concept
		used    bool
	}
	all := make([]*candidate, 0, len(concepts))
	byLabel := make(map[string][]*candidate, len(concepts))
	for i := range concepts {
		cand := &candidate{concept: &concepts[i]}
		all = append(all, cand)
		if key := strings.ToLower(strings.TrimSpace(concepts[i].Label)); key != "" {
			byLabel[key] = append(byLabel[key], cand)
		}
	}

	outcome := &types.MergeOutcome{}

	for _, group := range proposal.Merges {
		var members []*candidate
		for _, label := range group.SourceConcepts {
			key := strings.ToLower(strings.TrimSpace(label))
			for _, cand := range byLabel[key] {
				if cand.used {
					continue
				}
				cand.used = true
				members = append(members, cand)
				break
			}
		}

		if len(members) < 2 {
			// Degenerate group: release the lone member so it passes through
			// unmerged instead of vanishing into a one-concept "merge".
			for _, m := range members {
				m.used = false
			}
			continue
		}

		merged := types.Concept{
			Label:       strings.TrimSpace(group.MergedLabel),
			Description: strings.TrimSpace(group.MergedDescription),
		}
		if merged.Label == "" {
			merged.Label = members[0].concept.Label
		}
		event := types.MergeEvent{To: merged.Label}
		seenD1 := map[string]bool{}
		seenD2 := map[string]bool{}
		seenLabels := map[string]bool{}
		for _, m := range members {
			event.From = append(event.From, m.concept.Label)
			for _, id := range m.concept.SourceD1IDs {
				if seenD1[id] {
					continue
				}
				seenD1[id] = true
				merged.SourceD1IDs = append(merged.SourceD1IDs, id)
			}
			for _, id := range m.concept.SourceD2IDs {
				if seenD2[id] {
					continue
				}
				seenD2[id] = true
				merged.SourceD2IDs = append(merged.SourceD2IDs, id)
			}
			for _, l := range m.concept.ElementLabels {
				if seenLabels[l] {
					continue
				}
				seenLabels[l] = true
				merged.ElementLabels = append(merged.ElementLabels, l)
			}
		}

		outcome.Merged = append(outcome.Merged, merged)
		outcome.Log = append(outcome.Log, event)
	}

	// Carry forward everything no group consumed, split by contributing side.
	for _, cand := range all {
		if cand.used {
			continue
		}
		c := *cand.concept
		switch {
		case len(c.SourceD1IDs) > 0 && len(c.SourceD2IDs) > 0:
			// Cross-dataset concept that no round touched; it already aligns.
			outcome.Merged = append(outcome.Merged, c)
		case len(c.SourceD2IDs) > 0:
			outcome.UnmergedD2 = append(outcome.UnmergedD2, c)
		default:
			outcome.UnmergedD1 = append(outcome.UnmergedD1, c)
		}
	}

	if log != nil && len(proposal.Merges) > 0 {
		log.Debug("merge reconciliation",
			"proposed_groups", len(proposal.Merges),
			"accepted_groups", len(outcome.Log),
			"carried_forward", len(outcome.UnmergedD1)+len(outcome.UnmergedD2),
		)
	}

	return outcome
}

// AllConcepts flattens an outcome back into one concept list, the input shape
// of the next round.
func AllConcepts(outcome *types.MergeOutcome) []types.Concept {
	if outcome == nil {
		return nil
	}
	out := make([]types.Concept, 0, len(outcome.Merged)+len(outcome.UnmergedD1)+len(outcome.UnmergedD2))
	out = append(out, outcome.Merged...)
	out = append(out, outcome.UnmergedD1...)
	out = append(out, outcome.UnmergedD2...)
	return out
}

func countIDs(concepts []types.Concept) (d1, d2 int) {
	for _, c := range concepts {
		d1 += len(c.SourceD1IDs)
		d2 += len(c.SourceD2IDs)
	}
	return d1, d2
}

func countOutcomeIDs(outcome *types.MergeOutcome) (d1, d2 int) {
	if outcome == nil {
		return 0, 0
	}
	a1, a2 := countIDs(outcome.Merged)
	b1, b2 := countIDs(outcome.UnmergedD1)
	c1, c2 := countIDs(outcome.UnmergedD2)
	return a1 + b1 + c1, a2 + b2 + c2
}
