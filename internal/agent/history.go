package agent

// History truncation keeps follow-up prompts inside vendor context windows.
// Two bounds apply, whichever binds first: a maximum number of complete
// user/assistant exchanges, and an estimated token budget. Only whole
// exchanges are dropped, oldest first, so role alternation survives
// truncation. The most recent turn is never dropped.

// EstimateTokens approximates the token weight of a history with the
// 4-characters-per-token heuristic.
func EstimateTokens(turns []Turn) int {
	chars := 0
	for _, t := range turns {
		chars += t.Chars()
	}
	return chars / 4
}

// countExchanges counts completed user/assistant pairs. A trailing user
// turn awaiting its reply is not an exchange yet.
func countExchanges(turns []Turn) int {
	n := 0
	for i := 0; i+1 < len(turns); i++ {
		if turns[i].Role == RoleUser && turns[i+1].Role == RoleAssistant {
			n++
		}
	}
	return n
}

// dropOldestExchange removes the leading turn and, when it is a user turn
// directly answered by an assistant turn, the answer too.
func dropOldestExchange(turns []Turn) []Turn {
	if len(turns) == 0 {
		return turns
	}
	if len(turns) >= 2 && turns[0].Role == RoleUser && turns[1].Role == RoleAssistant {
		return turns[2:]
	}
	return turns[1:]
}

// TruncateHistory returns the suffix of turns that fits maxExchanges
// complete exchanges and maxTokens estimated tokens. The input slice is not
// modified; the result aliases its tail.
func TruncateHistory(turns []Turn, maxExchanges, maxTokens int) []Turn {
	for len(turns) > 1 && countExchanges(turns) > maxExchanges {
		turns = dropOldestExchange(turns)
	}
	for len(turns) > 1 && EstimateTokens(turns) > maxTokens {
		turns = dropOldestExchange(turns)
	}
	return turns
}
