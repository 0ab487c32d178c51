package steps

import (
	types "github.com/traceloom/traceloom-backend/internal/domain"
)

var criticalityRank = map[string]int{
	types.CriticalityCritical: 3,
	types.CriticalityMajor:    2,
	types.CriticalityMinor:    1,
	types.CriticalityInfo:     0,
}

// FinalizeVenn reduces the merge outcome into the three-bucket element
// classification. An element is aligned exactly when its owning concept
// carries ids from both datasets; everything else is unique to its side.
// Tesseract cells, when present, contribute criticality and evidence for D1
// elements; their absence only costs that metadata.
func FinalizeVenn(outcome *types.MergeOutcome, d1, d2 []types.Element, cells []*types.TesseractCell) *types.VennResult {
	result := &types.VennResult{
		UniqueToD1: []types.ClassifiedElement{},
		Aligned:    []types.ClassifiedElement{},
		UniqueToD2: []types.ClassifiedElement{},
	}

	concepts := AllConcepts(outcome)
	ownerByID := map[string]*types.Concept{}
	for i := range concepts {
		for _, id := range concepts[i].SourceD1IDs {
			ownerByID[id] = &concepts[i]
		}
		for _, id := range concepts[i].SourceD2IDs {
			ownerByID[id] = &concepts[i]
		}
	}

	// Most severe cell per D1 element.
	worst := map[string]*types.TesseractCell{}
	for _, cell := range cells {
		if cell == nil {
			continue
		}
		prev, ok := worst[cell.ElementID]
		if !ok || criticalityRank[cell.Criticality] > criticalityRank[prev.Criticality] {
			worst[cell.ElementID] = cell
		}
	}

	classify := func(el types.Element, fromD1 bool) {
		owner := ownerByID[el.ID]
		entry := types.ClassifiedElement{
			ID:    el.ID,
			Label: el.Label,
		}
		if owner != nil {
			entry.Concept = owner.Label
		}
		if cell, ok := worst[el.ID]; ok {
			entry.Criticality = cell.Criticality
			entry.Evidence = cell.Evidence
		}

		aligned := owner != nil && len(owner.SourceD1IDs) > 0 && len(owner.SourceD2IDs) > 0
		if aligned {
			if fromD1 {
				entry.PairedWith = owner.SourceD2IDs
			} else {
				entry.PairedWith = owner.SourceD1IDs
			}
			result.Aligned = append(result.Aligned, entry)
			return
		}
		if fromD1 {
			result.UniqueToD1 = append(result.UniqueToD1, entry)
		} else {
			result.UniqueToD2 = append(result.UniqueToD2, entry)
		}
	}

	for _, el := range d1 {
		classify(el, true)
	}
	for _, el := range d2 {
		classify(el, false)
	}

	alignedD1 := 0
	alignedD2 := 0
	for _, entry := range result.Aligned {
		if _, isD1 := findElement(d1, entry.ID); isD1 {
			alignedD1++
		} else {
			alignedD2++
		}
	}
	if len(d1) > 0 {
		result.Summary.TotalD1Coverage = float64(alignedD1) / float64(len(d1))
	}
	if len(d2) > 0 {
		result.Summary.TotalD2Coverage = float64(alignedD2) / float64(len(d2))
	}
	if total := len(d1) + len(d2); total > 0 {
		result.Summary.AlignmentScore = float64(alignedD1+alignedD2) / float64(total)
	}

	return result
}

func findElement(elems []types.Element, id string) (types.Element, bool) {
	for _, el := range elems {
		if el.ID == id {
			return el, true
		}
	}
	return types.Element{}, false
}
