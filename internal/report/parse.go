package report

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/epiguide/epiguide/internal/llm"
)

// Marker separates the clinical report from the machine-readable syndrome
// list in the model's reply.
const Marker = "EPILEPSY_SYNDROMES_JSON"

// legacyMarkers are older separator spellings some models fall back to,
// most specific first so a bold marker is not cut mid-token.
var legacyMarkers = []string{
	"OUTPUT 2 - EPILEPSY SYNDROMES",
	"**EPILEPSY SYNDROMES**",
	"EPILEPSY SYNDROMES",
}

var (
	outputHeaderPattern = regexp.MustCompile(`(?im)^\s*\*?\*?OUTPUT\s+1\s*-?\s*CLINICAL\s+REPORT\*?\*?\s*:?\s*\n?`)

	// A JSON array of strings, with escaped quotes allowed.
	arrayPattern = regexp.MustCompile(`\[(?:\s*"(?:[^\\"\n]|\\.)*"\s*(?:,\s*"(?:[^\\"\n]|\\.)*"\s*)*)?\]`)

	// Same array wrapped in a markdown code fence.
	fencedArrayPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[(?:\\s*\"(?:[^\\\\\"\\n]|\\\\.)*\"\\s*(?:,\\s*\"(?:[^\\\\\"\\n]|\\\\.)*\"\\s*)*)?\\])\\s*```")
)

// parseResponse splits a model reply into the clinician report and the
// syndrome list. Tolerates legacy markers, fenced arrays, and a missing
// list (report = full text, no syndromes).
func parseResponse(reply string) (string, []string) {
	text := llm.StripReasoning(reply)
	text = outputHeaderPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	reportPart := text
	searchRegion := text

	if idx := strings.Index(text, Marker); idx != -1 {
		reportPart = strings.TrimSpace(text[:idx])
		searchRegion = text[idx:]
	} else {
		for _, m := range legacyMarkers {
			if idx := strings.Index(text, m); idx != -1 {
				reportPart = strings.TrimSpace(text[:idx])
				searchRegion = text[idx:]
				break
			}
		}
	}

	var arrayText string
	if m := fencedArrayPattern.FindStringSubmatch(searchRegion); m != nil {
		arrayText = m[1]
	} else {
		arrayText = arrayPattern.FindString(searchRegion)
	}

	if arrayText != "" {
		var syndromes []string
		if err := json.Unmarshal([]byte(arrayText), &syndromes); err == nil {
			return reportPart, syndromes
		}
	}

	return reportPart, []string{}
}
