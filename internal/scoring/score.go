package scoring

import (
	"fmt"
	"strconv"
	"strings"
)

// Bucket classifies a scored question.
type Bucket int

const (
	BucketBlank Bucket = iota
	BucketCorrect
	BucketWrongNegative
	BucketWrongZero
	BucketWrongPositive
)

// Outcome is the score of one answered (or blank) question.
type Outcome struct {
	Score float64
	Blank bool
}

// Bucket returns the tally class of the outcome.
func (o Outcome) Bucket() Bucket {
	switch {
	case o.Blank:
		return BucketBlank
	case o.Score >= 1:
		return BucketCorrect
	case o.Score < 0:
		return BucketWrongNegative
	case o.Score == 0:
		return BucketWrongZero
	default:
		return BucketWrongPositive
	}
}

// Score grades a raw answer. order is the on-screen option order stored in the
// print; it is required for choice questions and ignored otherwise. Malformed
// answers never fail: they score as wrong.
func Score(key Key, answer string, order []int) (Outcome, error) {
	return key.score(answer, order)
}

func (k IntKey) score(answer string, _ []int) (Outcome, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Outcome{Blank: true}, nil
	}
	v, err := strconv.ParseInt(answer, 10, 64)
	if err != nil || v != k.Value {
		return Outcome{}, nil
	}
	return Outcome{Score: 1}, nil
}

func (k FloatKey) score(answer string, _ []int) (Outcome, error) {
	if strings.TrimSpace(answer) == "" {
		return Outcome{Blank: true}, nil
	}
	v, ok := parseFloat(answer)
	if !ok || v < k.Min || v > k.Max {
		return Outcome{}, nil
	}
	return Outcome{Score: 1}, nil
}

func (k TrueFalseKey) score(answer string, _ []int) (Outcome, error) {
	var v bool
	switch strings.TrimSpace(answer) {
	case "":
		return Outcome{Blank: true}, nil
	case "T":
		v = true
	case "F":
		v = false
	default:
		return Outcome{Score: -1}, nil
	}
	if v == k.Value {
		return Outcome{Score: 1}, nil
	}
	return Outcome{Score: -1}, nil
}

func (k TextKey) score(answer string, _ []int) (Outcome, error) {
	given := Normalize(answer)
	if given == "" {
		return Outcome{Blank: true}, nil
	}
	for _, accepted := range k.Accepted {
		if given == accepted {
			return Outcome{Score: 1}, nil
		}
	}
	return Outcome{}, nil
}

func (k ChoiceKey) score(answer string, order []int) (Outcome, error) {
	total := len(order)
	if total == 0 {
		return Outcome{}, fmt.Errorf("%w: choice question without option order", ErrMalformedKey)
	}
	shown := make(map[int]bool, total)
	numCorrect := 0
	for _, idx := range order {
		if idx < 0 || idx >= len(k.Correct) || shown[idx] {
			return Outcome{}, fmt.Errorf("%w: option order %v does not match %d options", ErrMalformedKey, order, len(k.Correct))
		}
		shown[idx] = true
		if k.Correct[idx] {
			numCorrect++
		}
	}

	// Only options on screen count. Selecting none of them leaves the
	// question blank, whatever else the answer holds.
	var good, bad float64
	for _, idx := range ParseChoiceAnswer(answer) {
		if !shown[idx] {
			continue
		}
		if k.Correct[idx] {
			good++
		} else {
			bad++
		}
	}
	if good == 0 && bad == 0 {
		return Outcome{Blank: true}, nil
	}

	n := float64(total)
	if !k.Multiple {
		if total >= 2 {
			return Outcome{Score: good - bad/(n-1)}, nil
		}
		return Outcome{Score: good}, nil
	}

	corr := float64(numCorrect)
	switch {
	case numCorrect == 0:
		return Outcome{Score: -bad / n}, nil
	case numCorrect < total:
		return Outcome{Score: good/corr - bad/(n-corr)}, nil
	default:
		return Outcome{Score: good / corr}, nil
	}
}

// ParseChoiceAnswer extracts the distinct option indexes of a comma separated
// answer. Tokens that are not option indexes are ignored.
func ParseChoiceAnswer(answer string) []int {
	var out []int
	seen := make(map[int]bool)
	for _, tok := range strings.Split(answer, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil || v < 0 || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// ParseIndexList decodes a stored option order such as "2,0,1".
func ParseIndexList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 {
			return nil, fmt.Errorf("bad option index %q in %q", p, s)
		}
		out = append(out, v)
	}
	return out, nil
}

// FormatIndexList encodes an option order for storage.
func FormatIndexList(order []int) string {
	parts := make([]string, len(order))
	for i, v := range order {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
