package pricegraph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Oudwins/zog"

	"github.com/kjannette/pricegraph/internal/chart"
	"github.com/kjannette/pricegraph/internal/external"
)

// MaxTickerLen bounds the ticker. Anything within it goes upstream as typed;
// unknown symbols come back as an empty table.
const MaxTickerLen = 32

var fieldRe = regexp.MustCompile(`^[a-z][a-z0-9_\-]{0,31}$`)

const (
	msgTickerRequired = "Enter a ticker symbol."
	msgFieldName      = "Unknown price type."
)

var (
	msgTickerTooLong = fmt.Sprintf("Ticker symbols are at most %d characters.", MaxTickerLen)
	msgTooManyFields = fmt.Sprintf("Pick at most %d price types.", chart.MaxFields)
)

// Query is a validated /pricegraph submission.
type Query struct {
	Ticker string
	Fields []string
}

var queryShape = zog.Shape{
	"Ticker": zog.String().
		Required(zog.Message(msgTickerRequired)).
		Max(MaxTickerLen, zog.Message(msgTickerTooLong)),
	"Fields": zog.Slice(zog.String().Match(fieldRe, zog.Message(msgFieldName))).
		Max(chart.MaxFields, zog.Message(msgTooManyFields)),
}

// BadRequestError carries per-field validation messages.
type BadRequestError struct {
	Issues map[string][]string
}

func (e *BadRequestError) Error() string {
	keys := make([]string, 0, len(e.Issues))
	for k := range e.Issues {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Issues[k], ", ")))
	}
	return "bad request: " + strings.Join(parts, "; ")
}

// Summary joins the distinct messages for display, in key order.
func (e *BadRequestError) Summary() string {
	keys := make([]string, 0, len(e.Issues))
	for k := range e.Issues {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	seen := make(map[string]bool)
	for _, k := range keys {
		for _, m := range e.Issues[k] {
			if !seen[m] {
				seen[m] = true
				parts = append(parts, m)
			}
		}
	}
	return strings.Join(parts, " ")
}

func badRequest(field, msg string) *BadRequestError {
	return &BadRequestError{Issues: map[string][]string{field: {msg}}}
}

// ParseQuery normalizes the ticker, drops blank and repeated fields, then
// validates the result.
func ParseQuery(ticker string, fields []string) (Query, error) {
	q := Query{Ticker: external.NormalizeTicker(ticker)}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		q.Fields = append(q.Fields, f)
	}

	if errs := zog.Struct(queryShape).Validate(&q); len(errs) > 0 {
		issues := make(map[string][]string)
		for path, list := range errs {
			if strings.HasPrefix(path, "$") {
				continue
			}
			for _, iss := range list {
				issues[path] = append(issues[path], iss.Message)
			}
		}
		if len(issues) == 0 {
			issues["query"] = []string{"invalid"}
		}
		return Query{}, &BadRequestError{Issues: issues}
	}
	return q, nil
}
