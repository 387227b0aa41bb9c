// Package validate checks user input before it is sent anywhere.
// Failures are reported in the Result, never as errors or panics.
package validate

import (
	"strings"
	"unicode"
)

const (
	MaxSMILESLength     = 1000
	MinSequenceLength   = 3
	MaxSequenceLength   = 2000
	MaxTargetNameLength = 100
	MaxPMIDLength       = 10
	proteinAlphabet     = "ACDEFGHIKLMNPQRSTVWY"
	smilesPunctuation   = `()[]=#@+-\/%.:*$`
)

// Result is the outcome of a validation. Cleaned holds the normalized input
// when Valid is true.
type Result struct {
	Valid   bool   `json:"valid"`
	Cleaned string `json:"cleaned,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(cleaned string) Result {
	return Result{Valid: true, Cleaned: cleaned}
}

func fail(msg string) Result {
	return Result{Error: msg}
}

// SMILES checks the syntax of a SMILES string. Only surrounding whitespace
// is removed; the string is not canonicalized.
func SMILES(s string) Result {
	s = strings.TrimSpace(s)
	if s == "" {
		return fail("SMILES string is required")
	}
	if len(s) > MaxSMILESLength {
		return fail("SMILES string is too long (max 1000 characters)")
	}

	var stack []rune
	for _, r := range s {
		if r > unicode.MaxASCII || !(isASCIILetter(r) || isASCIIDigit(r) || strings.ContainsRune(smilesPunctuation, r)) {
			return fail("SMILES contains invalid character '" + string(r) + "'")
		}
		switch r {
		case '(', '[':
			stack = append(stack, r)
		case ')', ']':
			open := '('
			if r == ']' {
				open = '['
			}
			if len(stack) == 0 || stack[len(stack)-1] != open {
				return fail("SMILES has unbalanced brackets")
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) != 0 {
		return fail("SMILES has unbalanced brackets")
	}

	return ok(s)
}

// ProteinSequence strips all whitespace, uppercases and checks the sequence
// against the 20 standard amino acid letters.
func ProteinSequence(s string) Result {
	cleaned := strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))

	if cleaned == "" {
		return fail("Protein sequence is required")
	}
	for _, r := range cleaned {
		if !strings.ContainsRune(proteinAlphabet, r) {
			return fail("Invalid amino acid '" + string(r) + "'. Use standard one-letter codes (ACDEFGHIKLMNPQRSTVWY)")
		}
	}
	if len(cleaned) < MinSequenceLength {
		return fail("Protein sequence is too short (min 3 residues)")
	}
	if len(cleaned) > MaxSequenceLength {
		return fail("Protein sequence is too long (max 2000 residues)")
	}

	return ok(cleaned)
}

// TargetName checks a protein target name typed by the user.
func TargetName(s string) Result {
	s = strings.TrimSpace(s)
	if s == "" {
		return fail("Target name is required")
	}
	if len([]rune(s)) > MaxTargetNameLength {
		return fail("Target name is too long (max 100 characters)")
	}
	if strings.ContainsAny(s, "<>") {
		return fail("Target name contains invalid characters")
	}
	return ok(s)
}

// PMID checks a PubMed identifier. It is used to build storage keys.
func PMID(s string) Result {
	s = strings.TrimSpace(s)
	if s == "" {
		return fail("PMID is required")
	}
	if len(s) > MaxPMIDLength {
		return fail("PMID is too long")
	}
	for _, r := range s {
		if !isASCIIDigit(r) {
			return fail("PMID must contain digits only")
		}
	}
	return ok(s)
}

// ByKind dispatches on the names used by the validation endpoint.
func ByKind(kind, value string) (Result, bool) {
	switch kind {
	case "smiles":
		return SMILES(value), true
	case "protein", "sequence":
		return ProteinSequence(value), true
	case "target":
		return TargetName(value), true
	case "pmid":
		return PMID(value), true
	default:
		return Result{}, false
	}
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
