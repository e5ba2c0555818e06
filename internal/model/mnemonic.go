package model

// MnemonicSet is the set of valid instruction tokens for the target ISA.
// Built once at run start and shared read-only; matching is exact and
// case-sensitive.
type MnemonicSet struct {
	tokens map[string]struct{}
}

// NewMnemonicSet builds a set from the given tokens.
func NewMnemonicSet(tokens []string) *MnemonicSet {
	s := &MnemonicSet{tokens: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		s.tokens[t] = struct{}{}
	}
	return s
}

// Contains reports whether token is a known instruction mnemonic.
func (s *MnemonicSet) Contains(token string) bool {
	_, ok := s.tokens[token]
	return ok
}

// Len returns the number of mnemonics in the set.
func (s *MnemonicSet) Len() int { return len(s.tokens) }
