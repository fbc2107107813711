package broker

import "strings"

// MatchTopic reports whether routingKey matches a topic binding pattern.
// Words are separated by dots; "*" matches exactly one word and "#" matches
// zero or more.
func MatchTopic(pattern, routingKey string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(routingKey, "."))
}

func matchWords(pattern, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			// Collapse runs of "#" then try every possible span.
			for len(pattern) > 1 && pattern[1] == "#" {
				pattern = pattern[1:]
			}
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if matchWords(pattern[1:], key[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || key[0] != pattern[0] {
				return false
			}
		}
		pattern, key = pattern[1:], key[1:]
	}
	return len(key) == 0
}

// Routes reports whether a message with routingKey published to an
// exchange of the given kind reaches a binding with pattern.
func Routes(kind ExchangeKind, pattern, routingKey string) bool {
	switch kind {
	case Fanout:
		return true
	case Direct:
		return pattern == routingKey
	default:
		return MatchTopic(pattern, routingKey)
	}
}
