package wargame

import (
	"fmt"
	"strings"

	"github.com/ashureev/wargame/internal/domain"
)

// Section headers of a narration reply. Humans read them; only the time
// offset is ever parsed back.
const (
	SectionDateTime   = "# Current DateTime"
	SectionTimeOffset = "# Time Offset"
	SectionResults    = "# Results"
	SectionNarrative  = "# Narrative"

	sectionOutcomes      = "# Outcomes"
	sectionChosenOutcome = "# Chosen Outcome"

	outcomeToolName = "report_outcomes"
	minCandidates   = 3
)

func facilitatorPrompt(players []domain.Player) string {
	var b strings.Builder
	b.WriteString("You are the facilitator of a multiplayer crisis wargame. ")
	b.WriteString("Set the scene from the scenario text and keep the simulated world consistent across turns.\n\n")
	b.WriteString("Players and their roles:\n")
	for _, p := range players {
		fmt.Fprintf(&b, "- %s: %s\n", p.Name, p.Role)
	}
	b.WriteString("\nYour first reply opens the scenario and happens at offset T+0. ")
	b.WriteString("Start every reply with these sections:\n")
	fmt.Fprintf(&b, "%s\n<in-world date and time>\n%s\nT+<elapsed time since the first reply>\n%s\n<answers to INFO and ACTION results>\n%s\n<what happens in the world>\n",
		SectionDateTime, SectionTimeOffset, SectionResults, SectionNarrative)
	return b.String()
}

func forecasterPrompt(structured bool) string {
	var b strings.Builder
	b.WriteString("You forecast the outcome of one player interaction in a crisis wargame. ")
	b.WriteString("All listed interactions happen concurrently; take them into account but resolve only the target. ")
	fmt.Fprintf(&b, "Enumerate at least %d distinct plausible outcomes and weight each by its likelihood. ", minCandidates)
	b.WriteString("INFO interactions are answered from the current world state and take no simulated time. ")
	b.WriteString("ACTION interactions may take time; state how long in the outcome.\n")
	if structured {
		fmt.Fprintf(&b, "Report the outcomes by calling %s.\n", outcomeToolName)
	} else {
		fmt.Fprintf(&b, "Reply with a section headed %q followed by one line per outcome in the form \"- <weight> | <description>\".\n", sectionOutcomes)
	}
	return b.String()
}

const narratorPrompt = `You are the facilitator of a crisis wargame. The user message lists everything that happened this turn: ground-truth updates (FEED) first, then the resolved outcomes of INFO and ACTION interactions.
Write the next world update. Reply with these sections:
# Current DateTime
# Time Offset
# Results
# Narrative
The time offset is cumulative from T+0. Only ACTION outcomes may advance the clock; FEED and INFO never do. FEED content is trusted fact. If little time has passed (hours), the world must not change drastically unless a fast-moving crisis is under way.`

func outcomeToolSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"outcomes": map[string]any{
				"type":     "array",
				"minItems": minCandidates,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"description": map[string]any{"type": "string"},
						"weight":      map[string]any{"type": "number", "exclusiveMinimum": 0},
					},
					"required": []string{"description", "weight"},
				},
			},
		},
		"required": []string{"outcomes"},
	}
}

// renderBatch lists every concurrent interaction in queue order.
func renderBatch(batch []domain.Interaction) string {
	lines := make([]string, 0, len(batch))
	for i, in := range batch {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, in))
	}
	return strings.Join(lines, "\n")
}

func forecastRequestText(batch []domain.Interaction, target domain.Interaction) string {
	return fmt.Sprintf("Concurrent interactions this turn:\n%s\n\nResolve this interaction:\n%s", renderBatch(batch), target)
}

// CombineOutcomes builds the user message of a narration turn: world-truth
// contents first, then one block per resolved outcome, separated by blank lines.
func CombineOutcomes(worldTruth []domain.Interaction, outcomes []domain.OutcomeRecord) string {
	blocks := make([]string, 0, len(worldTruth)+len(outcomes))
	for _, in := range worldTruth {
		blocks = append(blocks, in.String())
	}
	for _, rec := range outcomes {
		blocks = append(blocks, fmt.Sprintf("%s\nOutcome: %s", rec.Interaction, rec.Outcome))
	}
	if len(blocks) == 0 {
		return "No interaction was resolved this turn. Do not advance the clock."
	}
	return strings.Join(blocks, "\n\n")
}

// parseHeader splits a markdown header line into its lowercased name and
// any value written inline after a colon. Header depth is ignored.
func parseHeader(line string) (name, inline string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "#") {
		return "", "", false
	}
	name, inline, _ = strings.Cut(strings.TrimLeft(line, "#"), ":")
	name = strings.ToLower(strings.Trim(name, "* \t"))
	return name, strings.TrimSpace(inline), true
}

func headerName(section string) string {
	name, _, _ := parseHeader(section)
	return name
}

// ParseTimeOffset returns the value of the time offset section, either
// inline after the header or on the first non-blank line below it.
func ParseTimeOffset(text string) (string, bool) {
	want := headerName(SectionTimeOffset)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		name, inline, ok := parseHeader(line)
		if !ok || name != want {
			continue
		}
		if inline != "" {
			return inline, true
		}
		for _, next := range lines[i+1:] {
			next = strings.TrimSpace(next)
			if next == "" {
				continue
			}
			if strings.HasPrefix(next, "#") {
				return "", false
			}
			return next, true
		}
	}
	return "", false
}

// withTimeOffset forces the time offset section of text to offset,
// prepending the section when missing.
func withTimeOffset(text, offset string) string {
	want := headerName(SectionTimeOffset)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		name, inline, ok := parseHeader(line)
		if !ok || name != want {
			continue
		}
		if inline != "" {
			head, _, _ := strings.Cut(line, ":")
			lines[i] = head + ": " + offset
			return strings.Join(lines, "\n")
		}
		for j := i + 1; j < len(lines); j++ {
			next := strings.TrimSpace(lines[j])
			if next == "" {
				continue
			}
			if strings.HasPrefix(next, "#") {
				break
			}
			lines[j] = offset
			return strings.Join(lines, "\n")
		}
		tail := append([]string{offset}, lines[i+1:]...)
		return strings.Join(append(lines[:i+1], tail...), "\n")
	}
	return SectionTimeOffset + "\n" + offset + "\n\n" + text
}
