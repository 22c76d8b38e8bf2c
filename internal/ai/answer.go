package ai

import (
	"regexp"
	"strings"

	"github.com/chris/mergen/pkg/models"
)

// NotFound is the command reported when an answer has no code block
const NotFound = "Not found"

var (
	codeBlock    = regexp.MustCompile("(?s)```(?:bash|sh)?\\s*(.*?)\\s*```")
	categoryLine = regexp.MustCompile(`(?m)^Category:[ \t]*\[?(.*?)\]?[ \t]*$`)
)

// Answer is a parsed single-question reply
type Answer struct {
	Command     string
	Category    string
	Explanation string
}

// ParseAnswer extracts the first fenced command, the Category line and the
// remaining text. The category is always mapped onto the taxonomy.
func ParseAnswer(text string) Answer {
	ans := Answer{Command: NotFound, Category: models.CategoryOther}
	rest := text

	if m := codeBlock.FindStringSubmatchIndex(text); m != nil {
		ans.Command = strings.TrimSpace(text[m[2]:m[3]])
		if ans.Command == "" {
			ans.Command = NotFound
		}
		rest = strings.Replace(rest, text[m[0]:m[1]], "", 1)
	}

	if m := categoryLine.FindStringSubmatch(rest); m != nil {
		ans.Category = models.NormalizeCategory(m[1])
		rest = strings.Replace(rest, m[0], "", 1)
	}

	ans.Explanation = strings.TrimSpace(rest)
	return ans
}
