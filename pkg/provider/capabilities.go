package provider

import "strings"

// Capabilities infers coarse capability tags from a model identifier.
// Every model handles text. Vision and reasoning are guessed from
// naming conventions, which is as much as the catalog endpoint exposes.
func Capabilities(id string) []string {
	name := strings.ToLower(id)
	caps := []string{"text"}
	if strings.Contains(name, "vision") || strings.Contains(name, "gpt-4o") {
		caps = append(caps, "vision")
	}
	if strings.HasPrefix(name, "o1") || strings.Contains(name, "reason") {
		caps = append(caps, "reasoning")
	}
	return caps
}
