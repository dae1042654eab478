package transform

import (
	"bytes"
	"compress/gzip"
	"context"
	"sort"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

func init() {
	Register("none", func(map[string]string) (Transformer, error) { return Identity, nil })
	Register("replace", NewReplaceTransformer)
	Register("gzip", NewGzipTransformer)
}

// ReplacementRule replaces every occurrence of FromText with ToText
type ReplacementRule struct {
	FromText string
	ToText   string
}

// ReplaceText applies rules in order and returns the new content with the number of replacements
func ReplaceText(content []byte, rules []ReplacementRule) ([]byte, int) {
	current := string(content)
	count := 0
	for _, rule := range rules {
		if rule.FromText == "" {
			continue
		}
		n := strings.Count(current, rule.FromText)
		if n == 0 {
			continue
		}
		count += n
		current = strings.ReplaceAll(current, rule.FromText, rule.ToText)
	}
	return []byte(current), count
}

// RulesFromOptions reads replacement rules from transformer options. Each option is a rule from
// key to value. Longer keys are applied first so that "${host_name}" wins over "${host".
//
// The placeholders ${target}, ${file} and ${remote_file} in values are expanded per file.
func RulesFromOptions(opts map[string]string) []ReplacementRule {
	rules := make([]ReplacementRule, 0, len(opts))
	for k, v := range opts {
		if k == "" {
			continue
		}
		rules = append(rules, ReplacementRule{FromText: k, ToText: v})
	}
	sort.Slice(rules, func(i, j int) bool {
		if len(rules[i].FromText) != len(rules[j].FromText) {
			return len(rules[i].FromText) > len(rules[j].FromText)
		}
		return rules[i].FromText < rules[j].FromText
	})
	return rules
}

// 🔤 NewReplaceTransformer creates the "replace" transformer
func NewReplaceTransformer(opts map[string]string) (Transformer, error) {
	rules := RulesFromOptions(opts)
	if len(rules) == 0 {
		return nil, errors.Errorf("replace transformer needs at least one rule")
	}

	return func(_ context.Context, data []byte, tc Context) ([]byte, error) {
		expand := strings.NewReplacer(
			"${target}", tc.Target.DisplayName(),
			"${file}", tc.File,
			"${remote_file}", tc.RemoteFile,
		)
		expanded := make([]ReplacementRule, len(rules))
		for i, r := range rules {
			expanded[i] = ReplacementRule{FromText: r.FromText, ToText: expand.Replace(r.ToText)}
		}
		out, _ := ReplaceText(data, expanded)
		return out, nil
	}, nil
}

// 🗜️ NewGzipTransformer creates the "gzip" transformer. Option "level" is a gzip level (-2..9).
func NewGzipTransformer(opts map[string]string) (Transformer, error) {
	level := gzip.DefaultCompression
	if s := strings.TrimSpace(opts["level"]); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.Errorf("invalid gzip level %q: %w", s, err)
		}
		if l < gzip.HuffmanOnly || l > gzip.BestCompression {
			return nil, errors.Errorf("gzip level %d out of range", l)
		}
		level = l
	}

	return func(_ context.Context, data []byte, _ Context) ([]byte, error) {
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, errors.Errorf("creating gzip writer: %w", err)
		}
		if _, err := zw.Write(data); err != nil {
			return nil, errors.Errorf("compressing: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, errors.Errorf("closing gzip writer: %w", err)
		}
		return buf.Bytes(), nil
	}, nil
}
