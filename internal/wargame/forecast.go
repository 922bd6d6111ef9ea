package wargame

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/wargame/internal/domain"
	"github.com/ashureev/wargame/internal/llm"
)

// ForecastResult is the settled forecast of one interaction: either a
// record or an error, never both.
type ForecastResult struct {
	Interaction domain.Interaction
	Record      domain.OutcomeRecord
	Err         error
}

// ForecastOutcomes resolves every forecastable interaction of batch to an
// outcome. Requests are independent and run concurrently, bounded by the
// engine's concurrency cap. Results come back in queue order. A failed
// forecast is reported in its result and never aborts the others.
func (e *Engine) ForecastOutcomes(ctx context.Context, history []domain.Message, batch []domain.Interaction) []ForecastResult {
	_, forecastable := Partition(batch)
	results := make([]ForecastResult, len(forecastable))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, target := range forecastable {
		g.Go(func() error {
			outcome, err := e.forecastOne(ctx, history, batch, target)
			results[i] = ForecastResult{Interaction: target, Err: err}
			if err == nil {
				results[i].Record = domain.OutcomeRecord{Interaction: target, Outcome: outcome}
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) forecastOne(ctx context.Context, history []domain.Message, batch []domain.Interaction, target domain.Interaction) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.forecastTimeout)
	defer cancel()

	structured := e.backend.Capabilities().StructuredOutcomes
	messages := make([]domain.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: forecastRequestText(batch, target)})

	req := llm.Request{
		System:   forecasterPrompt(structured),
		Messages: messages,
	}
	if structured {
		req.Tools = []llm.Tool{{
			Name:        outcomeToolName,
			Description: "Report weighted candidate outcomes for the target interaction.",
			Parameters:  outcomeToolSchema(),
		}}
		req.RequireTool = outcomeToolName
	}

	resp, err := e.backend.Complete(ctx, req)
	if err != nil {
		return "", &BackendError{Stage: "forecast", Err: err}
	}

	var candidates []domain.OutcomeCandidate
	if structured {
		candidates, err = parseToolOutcomes(resp)
	} else {
		var chosen string
		candidates, chosen, err = parseTextOutcomes(resp.Text)
		if err == nil && len(candidates) == 0 {
			return chosen, nil
		}
	}
	if err != nil {
		return "", err
	}

	outcome, err := SampleWeighted(e.rng, candidates)
	if err != nil {
		return "", &ParseError{Stage: "forecast", Reason: "no usable weighted outcome", Err: err}
	}
	return outcome, nil
}

func parseToolOutcomes(resp llm.Response) ([]domain.OutcomeCandidate, error) {
	call, ok := resp.ToolCall(outcomeToolName)
	if !ok {
		return nil, &ParseError{Stage: "forecast", Reason: "missing " + outcomeToolName + " tool call"}
	}
	var args struct {
		Outcomes []domain.OutcomeCandidate `json:"outcomes"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return nil, &ParseError{Stage: "forecast", Reason: "invalid tool arguments", Err: err}
	}
	if len(args.Outcomes) == 0 {
		return nil, &ParseError{Stage: "forecast", Reason: "tool call listed no outcomes"}
	}
	return args.Outcomes, nil
}

// listMarker matches a bullet or an "1." / "1)" enumeration. Enumerations
// need trailing space so a bare weight like "0.6" is left alone.
var listMarker = regexp.MustCompile(`^(?:[-*+•]\s*|\d+[.)]\s+)`)

// parseTextOutcomes reads "- <weight> | <description>" lines under the
// outcomes section. When the model instead states a chosen outcome
// directly, that text is returned with no candidates.
func parseTextOutcomes(text string) ([]domain.OutcomeCandidate, string, error) {
	var (
		candidates []domain.OutcomeCandidate
		chosen     []string
		section    string
	)
	outcomes, chosenOutcome := headerName(sectionOutcomes), headerName(sectionChosenOutcome)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if name, inline, ok := parseHeader(line); ok {
			section = name
			if section == chosenOutcome && inline != "" {
				chosen = append(chosen, inline)
			}
			continue
		}
		switch section {
		case outcomes:
			if c, ok := parseCandidateLine(line); ok {
				candidates = append(candidates, c)
			}
		case chosenOutcome:
			if line != "" {
				chosen = append(chosen, line)
			}
		}
	}
	if len(candidates) > 0 {
		return candidates, "", nil
	}
	if len(chosen) > 0 {
		return nil, strings.Join(chosen, "\n"), nil
	}
	return nil, "", &ParseError{Stage: "forecast", Reason: "reply has no " + sectionOutcomes + " section"}
}

func parseCandidateLine(line string) (domain.OutcomeCandidate, bool) {
	line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
	weightText, description, ok := strings.Cut(line, "|")
	if !ok {
		return domain.OutcomeCandidate{}, false
	}
	weightText = strings.Trim(strings.TrimSpace(weightText), "[]()")
	weightText = strings.TrimSuffix(weightText, "%")
	weight, err := strconv.ParseFloat(strings.TrimSpace(weightText), 64)
	description = strings.TrimSpace(description)
	if err != nil || description == "" {
		return domain.OutcomeCandidate{}, false
	}
	return domain.OutcomeCandidate{Description: description, Weight: weight}, true
}
