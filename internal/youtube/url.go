package youtube

import (
	"fmt"
	"regexp"
	"strings"

	"dailycast/internal/services"
)

// videoIDPattern matches the 11-character video id in watch and short
// links.
var videoIDPattern = regexp.MustCompile(`(?:v=|youtu\.be/|/shorts/|/embed/)([A-Za-z0-9_-]{11})`)

// ExtractVideoID pulls the video id out of a YouTube link.
func ExtractVideoID(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("%w: empty link", services.ErrValidation)
	}
	match := videoIDPattern.FindStringSubmatch(link)
	if match == nil {
		return "", fmt.Errorf("%w: %q is not a recognizable video link", services.ErrValidation, link)
	}
	return match[1], nil
}
