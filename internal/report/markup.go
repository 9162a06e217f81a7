package report

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedMarkup is returned by RenderLine when a line cannot be
// translated safely. Callers fall back to StripMarkup.
var ErrMalformedMarkup = errors.New("malformed markup")

var (
	headingPattern = regexp.MustCompile(`^\s*#{1,6}\s*`)
	bulletPattern  = regexp.MustCompile(`^\s*[-*+]\s+`)
	strippedChars  = strings.NewReplacer("#", "", "*", "", "_", "", "`", "", "<", "", ">", "")
)

const bullet = "• "

// RenderLine translates one line of model output into the tag subset the
// PDF engine understands: headings and **bold** / __bold__ become <b>,
// leading list markers become a bullet sign.
func RenderLine(raw string) (string, error) {
	line := strings.TrimRight(raw, " \t\r")
	if strings.ContainsAny(line, "<>") {
		return "", fmt.Errorf("%w: angle bracket in %q", ErrMalformedMarkup, line)
	}
	line = strings.ReplaceAll(line, "`", "")

	heading := false
	if loc := headingPattern.FindStringIndex(line); loc != nil {
		heading = true
		line = line[loc[1]:]
	} else if loc := bulletPattern.FindStringIndex(line); loc != nil {
		line = bullet + line[loc[1]:]
	}

	var err error
	for _, marker := range []string{"**", "__"} {
		line, err = replaceBold(line, marker)
		if err != nil {
			return "", err
		}
	}

	if heading && line != "" {
		line = "<b>" + line + "</b>"
	}
	return line, nil
}

func replaceBold(line, marker string) (string, error) {
	parts := strings.Split(line, marker)
	if len(parts)%2 == 0 {
		return "", fmt.Errorf("%w: unbalanced %s in %q", ErrMalformedMarkup, marker, line)
	}

	var out strings.Builder
	for i, part := range parts {
		if i > 0 {
			if i%2 == 1 {
				out.WriteString("<b>")
			} else {
				out.WriteString("</b>")
			}
		}
		out.WriteString(part)
	}
	return out.String(), nil
}

// StripMarkup returns raw with every markup character removed.
func StripMarkup(raw string) string {
	return strings.TrimSpace(strippedChars.Replace(raw))
}
