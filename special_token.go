package pbpe

import "fmt"

// SpecialToken is a token string reserved outside the trained
// vocabulary's merge/split machinery — the trainer adds it to the vocab
// at the smallest ids, ahead of the alphabet. The model has no
// special-token matching of its own: Tokenize returns one as a single
// token only when ignore_merges is set and the whole input equals it.
type SpecialToken struct {
	Content string
}

// validateSpecialTokens rejects an empty token and duplicate content.
func validateSpecialTokens(tokens []SpecialToken) error {
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t.Content == "" {
			return fmt.Errorf("special token: %w", NewUnexpectedTypeError(t.Content, "non-empty token string"))
		}
		if _, dup := seen[t.Content]; dup {
			return fmt.Errorf("special token %q: %w", t.Content, NewUnexpectedTypeError(t.Content, "unique token string"))
		}
		seen[t.Content] = struct{}{}
	}
	return nil
}
