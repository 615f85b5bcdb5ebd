// Package wallet holds the single account key that signs Bank transactions:
// BIP39 mnemonic handling, BIP44 derivation, and the age encrypted keystore.
package wallet

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/tyler-smith/go-bip39"

	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

var (
	// whitespaceRegex matches one or more whitespace characters.
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// numberedListRegex matches numbered list prefixes like "1." "2)" "3:"
	numberedListRegex = regexp.MustCompile(`(?m)^\s*\d+[\.\)\:]\s*`)

	// bulletListRegex matches bullet prefixes like "- " "* " "• "
	bulletListRegex = regexp.MustCompile(`(?m)^\s*[-*•]\s*`)

	// wordIndex is the BIP39 English word list as a set.
	wordIndex = buildWordIndex()
)

func buildWordIndex() map[string]struct{} {
	words := bip39.GetWordList()
	idx := make(map[string]struct{}, len(words))
	for _, w := range words {
		idx[w] = struct{}{}
	}
	return idx
}

// GenerateMnemonic creates a new BIP39 mnemonic phrase.
// wordCount must be 12 (128 bits entropy) or 24 (256 bits entropy).
func GenerateMnemonic(wordCount int) (string, error) {
	var bitSize int
	switch wordCount {
	case 12:
		bitSize = 128
	case 24:
		bitSize = 256
	default:
		return "", coffererr.WithDetails(coffererr.ErrInvalidMnemonic, map[string]string{
			"reason": "word count must be 12 or 24",
		})
	}

	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", coffererr.Wrap(err, "generating entropy")
	}

	return bip39.NewMnemonic(entropy)
}

// ValidateMnemonic checks word count, word validity and checksum.
func ValidateMnemonic(mnemonic string) error {
	normalized := NormalizeMnemonicInput(mnemonic)
	if normalized == "" {
		return coffererr.ErrInvalidMnemonic
	}

	wordCount := len(strings.Fields(normalized))
	if wordCount != 12 && wordCount != 24 {
		return coffererr.WithDetails(coffererr.ErrInvalidMnemonic, map[string]string{
			"words": strconv.Itoa(wordCount),
		})
	}

	if _, err := bip39.MnemonicToByteArray(normalized); err != nil {
		if typos := DetectTypos(normalized); len(typos) > 0 {
			return coffererr.WithSuggestion(coffererr.ErrInvalidMnemonic, FormatTypoSuggestions(typos))
		}
		return coffererr.WithDetails(coffererr.ErrInvalidMnemonic, map[string]string{"reason": "bad checksum"})
	}

	return nil
}

// NormalizeMnemonicInput cleans pasted mnemonic input by:
// - Converting to lowercase
// - Removing numbered list prefixes (1. 2) 3: etc.)
// - Removing bullet prefixes (- * •)
// - Replacing commas with spaces
// - Collapsing whitespace to single spaces
func NormalizeMnemonicInput(input string) string {
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = bulletListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// MnemonicToSeed converts a BIP39 mnemonic phrase to a 64-byte seed.
// The passphrase is optional. The caller should zero the seed after use.
func MnemonicToSeed(mnemonic, passphrase string) ([]byte, error) {
	normalized := NormalizeMnemonicInput(mnemonic)
	if err := ValidateMnemonic(normalized); err != nil {
		return nil, err
	}
	return bip39.NewSeed(normalized, passphrase), nil
}

// IsValidWord checks if a word is in the BIP39 word list.
func IsValidWord(word string) bool {
	_, ok := wordIndex[strings.ToLower(word)]
	return ok
}

// MaxTypoDistance is the maximum Levenshtein distance to consider a suggestion.
const MaxTypoDistance = 2

// TypoInfo describes one word that is not in the BIP39 word list.
type TypoInfo struct {
	Index      int    // 0-based word position
	Word       string // Word as typed
	Suggestion string // Closest BIP39 word, empty when nothing is close
	Distance   int    // Levenshtein distance to Suggestion
}

// SuggestWord finds the closest BIP39 word to the input.
// Returns "" if no word is within MaxTypoDistance.
func SuggestWord(input string) string {
	input = strings.ToLower(input)
	if IsValidWord(input) {
		return input
	}

	minDist := math.MaxInt
	var suggestion string
	for _, word := range bip39.GetWordList() {
		if dist := levenshtein.ComputeDistance(input, word); dist < minDist {
			minDist = dist
			suggestion = word
		}
	}

	if minDist <= MaxTypoDistance {
		return suggestion
	}
	return ""
}

// DetectTypos returns every word of the mnemonic that is not a BIP39 word.
func DetectTypos(mnemonic string) []TypoInfo {
	var typos []TypoInfo
	for i, word := range strings.Fields(NormalizeMnemonicInput(mnemonic)) {
		if IsValidWord(word) {
			continue
		}
		info := TypoInfo{Index: i, Word: word, Suggestion: SuggestWord(word)}
		if info.Suggestion != "" {
			info.Distance = levenshtein.ComputeDistance(word, info.Suggestion)
		}
		typos = append(typos, info)
	}
	return typos
}

// FormatTypoSuggestions renders typos one per line with 1-based positions.
func FormatTypoSuggestions(typos []TypoInfo) string {
	var b strings.Builder
	for i, typo := range typos {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("word ")
		b.WriteString(strconv.Itoa(typo.Index + 1))
		b.WriteString(": '")
		b.WriteString(typo.Word)
		b.WriteByte('\'')
		if typo.Suggestion != "" {
			b.WriteString(" - did you mean '")
			b.WriteString(typo.Suggestion)
			b.WriteString("'?")
		} else {
			b.WriteString(" is not a valid BIP39 word")
		}
	}
	return b.String()
}
