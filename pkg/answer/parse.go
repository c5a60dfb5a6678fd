package answer

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	errNoJSON            = errors.New("answer: no JSON object in reply")
	errMissingAnswer     = errors.New("answer: reply has no answer")
	errInvalidConfidence = errors.New("answer: reply has no numeric confidence")
)

type reply struct {
	Answer      string
	Confidence  int
	NeedsReview bool
	Reasoning   string
}

// parseReply reads the model's JSON object, either as the whole reply or as
// the span from the first '{' to the last '}'.
func parseReply(text string) (reply, error) {
	obj, err := extractObject(text)
	if err != nil {
		return reply{}, err
	}

	var r reply
	ans := obj.Get("answer")
	// An explicit empty string is the model saying it has no answer.
	if ans.Type != gjson.String {
		return reply{}, errMissingAnswer
	}
	r.Answer = ans.Str

	conf, err := confidence(obj.Get("confidence"))
	if err != nil {
		return reply{}, err
	}
	r.Confidence = conf

	switch review := obj.Get("needs_review"); review.Type {
	case gjson.True, gjson.False:
		r.NeedsReview = review.Bool()
	default:
		r.NeedsReview = conf < ReviewThreshold
	}

	if reasoning := obj.Get("reasoning"); reasoning.Exists() {
		r.Reasoning = reasoning.String()
	}
	return r, nil
}

func extractObject(text string) (gjson.Result, error) {
	text = strings.TrimSpace(text)
	if gjson.Valid(text) {
		if obj := gjson.Parse(text); obj.IsObject() {
			return obj, nil
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return gjson.Result{}, errNoJSON
	}
	span := text[start : end+1]
	if !gjson.Valid(span) {
		return gjson.Result{}, errNoJSON
	}
	return gjson.Parse(span), nil
}

// confidence accepts a number or a numeric string, truncates it and clamps
// it to 0..100.
func confidence(v gjson.Result) (int, error) {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v.Str), "%"), 64)
		if err != nil {
			return 0, errInvalidConfidence
		}
		f = parsed
	default:
		return 0, errInvalidConfidence
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errInvalidConfidence
	}

	c := int(math.Max(0, math.Min(100, f)))
	return c, nil
}
