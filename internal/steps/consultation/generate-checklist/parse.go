// internal/steps/consultation/generate-checklist/parse.go
package generatechecklist

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"visa-guru/internal/models"
)

var ErrChecklistParse = errors.New("CHECKLIST_PARSE_FAILED")

var (
	// A heading has nothing after "priority" but emphasis, a colon or a
	// parenthetical, so "1. High priority courier receipt: ..." stays an item.
	headingPattern = regexp.MustCompile(`(?i)^[#*\s\d.)]*\b(high|medium|low)\b[\s-]*priority(?:\s+(?:items|documents))?[\s*:]*(?:\([^)]*\))?[\s*:]*$`)
	itemPattern    = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
)

// parseChecklist reads a generated checklist of the form
//
//	HIGH priority
//	- Document name: description
//	  - indented detail, collected into notes
//	MEDIUM priority
//	1. Document name - description
//
// Items outside a priority section are ignored. A result without any item
// fails with ErrChecklistParse.
func parseChecklist(text string) ([]models.DocumentItem, error) {
	var (
		items   []models.DocumentItem
		current models.Priority
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			current = models.Priority(strings.ToLower(m[1]))
			continue
		}
		if current == "" {
			continue
		}
		m := itemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		// Indented bullets detail the previous document.
		if indented(raw) && len(items) > 0 {
			last := &items[len(items)-1]
			last.Notes = joinNotes(last.Notes, strings.ReplaceAll(m[1], "**", ""))
			continue
		}

		name, description := splitItem(m[1])
		if name == "" {
			continue
		}
		if description == "" {
			description = name
		}
		items = append(items, models.DocumentItem{
			Name:        name,
			Priority:    current,
			Description: description,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChecklistParse, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no prioritized items found", ErrChecklistParse)
	}
	return items, nil
}

// splitItem separates "Name: description" or "Name - description" and strips markdown emphasis.
func splitItem(s string) (string, string) {
	s = strings.ReplaceAll(s, "**", "")
	for _, sep := range []string{": ", " - ", " – "} {
		if idx := strings.Index(s, sep); idx > 0 {
			return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+len(sep):])
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(s, ":")), ""
}

func indented(line string) bool {
	return strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")
}

func joinNotes(existing, addition string) string {
	addition = strings.TrimSpace(addition)
	if existing == "" {
		return addition
	}
	return existing + " " + addition
}

// ensureResidency makes the list carry exactly one proof of residency item
// whose name and priority follow residencyItem, whatever the model wrote.
// Other residence documents, such as a permit, are kept as generated.
func ensureResidency(items []models.DocumentItem, req *models.ConsultationRequest) []models.DocumentItem {
	out := make([]models.DocumentItem, 0, len(items)+1)
	placed := false
	for _, item := range items {
		if !isProofOfResidency(item.Name) {
			out = append(out, item)
			continue
		}
		if !placed {
			out = append(out, residencyItem(req))
			placed = true
		}
	}
	if !placed {
		out = append(out, residencyItem(req))
	}
	return out
}

func isProofOfResidency(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "proof of residen") || strings.Contains(name, "residency proof")
}
