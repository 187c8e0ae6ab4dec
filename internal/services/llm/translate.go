package llm

import (
	"fmt"
	"strings"
	"time"
)

// TranslationSystemPrompt frames every translation request.
const TranslationSystemPrompt = `You translate short video transcripts for dubbing.
Respond with a single JSON object and nothing else.
Each key is a requested language name in lowercase English, each value is the translated text.`

// TranslationTarget names one output language. Key is the JSON key the
// model must use, Name is the human-readable language name.
type TranslationTarget struct {
	Key  string
	Name string
}

// TranslationRequest carries the transcript and its target languages for
// BuildTranslationPrompt.
type TranslationRequest struct {
	Transcript string
	Duration   time.Duration
	Audience   string
	Targets    []TranslationTarget
}

// BuildTranslationPrompt renders the user prompt for req.
func BuildTranslationPrompt(req TranslationRequest) string {
	names := make([]string, 0, len(req.Targets))
	keys := make([]string, 0, len(req.Targets))
	for _, target := range req.Targets {
		names = append(names, target.Name)
		keys = append(keys, target.Key)
	}
	audience := strings.TrimSpace(req.Audience)
	if audience == "" {
		audience = "regional"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Translate this %s video transcript into %s with cultural relevance for %s audiences:\n\n",
		formatDuration(req.Duration), joinNames(names), audience)
	fmt.Fprintf(&b, "Original: %s\n\n", strings.TrimSpace(req.Transcript))
	b.WriteString("Provide translations that:\n")
	b.WriteString("1. Maintain the original meaning and tone\n")
	b.WriteString("2. Use culturally appropriate expressions\n")
	b.WriteString("3. Keep the same approximate length for lip sync\n\n")
	fmt.Fprintf(&b, "Return as JSON with keys: %s", strings.Join(keys, ", "))
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "short"
	}
	seconds := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d second", seconds)
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	}
	return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
}
