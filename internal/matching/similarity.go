package matching

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Method tags recorded in NameScore
const (
	MethodFuzzyNameMatch = "fuzzy_name_match"
	MethodMissingData    = "missing_data"
)

// NameScore holds the individual algorithm scores behind a name comparison.
// The four ratios capture different name-format mismatches between the two
// systems ("Smith, John" vs "John A. Smith" vs "Bob" vs "Robert Smith"); the
// best of the four is the similarity, so a correct match is never penalized
// for failing an algorithm ill-suited to its format.
type NameScore struct {
	Plain     float64 `json:"plain"`
	TokenSort float64 `json:"token_sort"`
	TokenSet  float64 `json:"token_set"`
	Partial   float64 `json:"partial"`
	Best      float64 `json:"best"`
	Method    string  `json:"method"`
}

// CompareNames normalizes both names and scores them with all four
// algorithms. Missing data on either side scores 0 with the missing_data tag.
func CompareNames(name1, name2 string) NameScore {
	n1 := NormalizeName(name1)
	n2 := NormalizeName(name2)

	if n1 == "" || n2 == "" {
		return NameScore{Method: MethodMissingData}
	}

	score := NameScore{
		Plain:     Ratio(n1, n2),
		TokenSort: TokenSortRatio(n1, n2),
		TokenSet:  TokenSetRatio(n1, n2),
		Partial:   PartialRatio(n1, n2),
		Method:    MethodFuzzyNameMatch,
	}
	score.Best = max4(score.Plain, score.TokenSort, score.TokenSet, score.Partial)
	return score
}

// Ratio is the plain edit-distance similarity, normalized to [0,1].
func Ratio(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	maxLen := len([]rune(s1))
	if l := len([]rune(s2)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(s1, s2)
	return 1.0 - float64(dist)/float64(maxLen)
}

// TokenSortRatio compares the strings with their tokens sorted, making the
// score insensitive to word order.
func TokenSortRatio(s1, s2 string) float64 {
	return Ratio(sortTokens(s1), sortTokens(s2))
}

// TokenSetRatio compares the token intersection against each side's token
// surplus, making the score insensitive to repeated or extra tokens such as
// middle names.
func TokenSetRatio(s1, s2 string) float64 {
	set1 := tokenSet(s1)
	set2 := tokenSet(s2)

	var common, diff1, diff2 []string
	for tok := range set1 {
		if set2[tok] {
			common = append(common, tok)
		} else {
			diff1 = append(diff1, tok)
		}
	}
	for tok := range set2 {
		if !set1[tok] {
			diff2 = append(diff2, tok)
		}
	}
	sort.Strings(common)
	sort.Strings(diff1)
	sort.Strings(diff2)

	base := strings.Join(common, " ")
	combined1 := strings.TrimSpace(base + " " + strings.Join(diff1, " "))
	combined2 := strings.TrimSpace(base + " " + strings.Join(diff2, " "))

	return max4(
		Ratio(base, combined1),
		Ratio(base, combined2),
		Ratio(combined1, combined2),
		0,
	)
}

// PartialRatio slides the shorter string across the longer one and returns
// the best window score, handling short-vs-long name mismatches.
func PartialRatio(s1, s2 string) float64 {
	shorter := []rune(s1)
	longer := []rune(s2)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}
	if len(shorter) == len(longer) {
		return Ratio(string(shorter), string(longer))
	}

	best := 0.0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		window := string(longer[i : i+len(shorter)])
		if r := Ratio(string(shorter), window); r > best {
			best = r
		}
		if best == 1.0 {
			break
		}
	}
	return best
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

func max4(a, b, c, d float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	if d > m {
		m = d
	}
	return m
}
