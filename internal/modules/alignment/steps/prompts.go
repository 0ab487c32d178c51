package steps

import (
	"fmt"
	"strings"
	"unicode/utf8"

	types "github.com/traceloom/traceloom-backend/internal/domain"
)

// Content shown to the model is truncated per element to bound prompt size.
const elementContentBudget = 300

// Labels shown per concept in merge prompts.
const mergePromptExampleLabels = 3

func truncateContent(s string, budget int) string {
	s = strings.TrimSpace(s)
	if budget <= 0 || len(s) <= budget {
		return s
	}
	// Back off to a rune boundary so the cut never leaves a partial UTF-8
	// sequence.
	cut := budget
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func datasetRole(dataset string) string {
	if dataset == types.Dataset2 {
		return "implementation artifacts"
	}
	return "requirements and specifications"
}

func buildExtractionPrompt(dataset string, elems []types.Element) string {
	var b strings.Builder
	b.WriteString("You are analyzing a collection of " + datasetRole(dataset) + ".\n")
	b.WriteString("Group the items below into 5-15 named concepts. Every item id must appear in at least one concept.\n\n")
	b.WriteString("Items:\n")
	for _, el := range elems {
		b.WriteString("- id: " + el.ID)
		if el.Category != "" {
			b.WriteString(" [" + el.Category + "]")
		}
		b.WriteString("\n  label: " + strings.TrimSpace(el.Label) + "\n")
		if content := truncateContent(el.Content, elementContentBudget); content != "" {
			b.WriteString("  content: " + content + "\n")
		}
	}
	b.WriteString("\nReturn ONLY JSON, no prose, in this shape:\n")
	b.WriteString(`{
  "concepts": [
    {"label": "string", "description": "string", "element_ids": ["id", "..."]}
  ]
}`)
	return b.String()
}

func conceptAnnotation(c types.Concept) string {
	d1 := len(c.SourceD1IDs)
	d2 := len(c.SourceD2IDs)
	switch {
	case d1 > 0 && d2 > 0:
		return fmt.Sprintf("[BOTH: %d D1 + %d D2]", d1, d2)
	case d1 > 0:
		return fmt.Sprintf("[D1-only: %d]", d1)
	default:
		return fmt.Sprintf("[D2-only: %d]", d2)
	}
}

func buildMergePrompt(round MergeRound, concepts []types.Concept) string {
	var b strings.Builder
	b.WriteString("Two datasets were analyzed: Dataset 1 (requirements) and Dataset 2 (implementation).\n")
	b.WriteString("Below are the current concepts from both. Decide which concepts describe the same thing and should be fused.\n\n")
	b.WriteString("Merge criteria for this pass: " + round.Criteria + "\n\n")
	b.WriteString("Concepts:\n")
	for _, c := range concepts {
		b.WriteString("- " + c.Label + " " + conceptAnnotation(c) + "\n")
		if desc := strings.TrimSpace(c.Description); desc != "" {
			b.WriteString("  description: " + desc + "\n")
		}
		if len(c.ElementLabels) > 0 {
			n := len(c.ElementLabels)
			if n > mergePromptExampleLabels {
				n = mergePromptExampleLabels
			}
			b.WriteString("  examples: " + strings.Join(c.ElementLabels[:n], "; ") + "\n")
		}
	}
	b.WriteString("\nOnly propose groups of 2 or more concepts. Use the concept labels exactly as written.\n")
	b.WriteString("Return ONLY JSON, no prose, in this shape:\n")
	b.WriteString(`{
  "merges": [
    {"sourceConcepts": ["label", "..."], "mergedLabel": "string", "mergedDescription": "string"}
  ]
}`)
	return b.String()
}

func buildTesseractPrompt(el types.Element, owning *types.Concept) string {
	var b strings.Builder
	b.WriteString("Evaluate how well the following requirement is covered by the implementation dataset.\n\n")
	b.WriteString("Requirement " + el.ID + ": " + strings.TrimSpace(el.Label) + "\n")
	if content := truncateContent(el.Content, elementContentBudget); content != "" {
		b.WriteString(content + "\n")
	}
	if owning != nil {
		b.WriteString("\nIt belongs to the concept \"" + owning.Label + "\"")
		if len(owning.SourceD2IDs) > 0 {
			b.WriteString(fmt.Sprintf(", which also covers %d implementation artifacts: %s",
				len(owning.SourceD2IDs), strings.Join(owning.SourceD2IDs, ", ")))
		} else {
			b.WriteString(", which has no implementation artifacts")
		}
		b.WriteString(".\n")
	}
	b.WriteString("\nScore it on these steps: coverage, quality, risk.\n")
	b.WriteString("polarity is -1.0 (badly misaligned) to 1.0 (fully aligned); criticality is one of critical, major, minor, info.\n")
	b.WriteString("Return ONLY JSON, no prose, in this shape:\n")
	b.WriteString(`{
  "cells": [
    {"step": "coverage", "polarity": 0.0, "criticality": "info", "evidence": "string"}
  ]
}`)
	return b.String()
}
