// Package web is the built-in template for static web assignments: HTML
// structure and stylesheet checks that run without a sandbox.
package web

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"autograder/internal/api"
	"autograder/internal/template"

	"github.com/PuerkitoBio/goquery"
)

// Name is the registry name of this template.
const Name = "web"

// New builds the web template. None of its tests need a sandbox.
func New() (*template.Template, error) {
	return template.New(Name, false,
		hasTag(),
		hasForbiddenTag(),
		tagCount(),
		hasLink(),
		hasStyle(),
		checkMediaQueries(),
	)
}

func parseHTML(f api.SubmissionFile) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(f.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
	}
	return doc, nil
}

// hasTag passes when any selected HTML document matches the selector.
func hasTag() *template.Func {
	descriptors := []api.ParamDescriptor{
		{Name: "tag", Description: "CSS selector that must match", Type: "string"},
	}
	return template.NewFunc("has_tag", api.FileKindHTML, descriptors,
		func(ctx context.Context, files []api.SubmissionFile, sb api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			tag := paramString(params, "tag")
			if tag == "" {
				return api.TestOutcome{Report: "no tag configured"}, nil
			}

			for _, f := range htmlFiles(files) {
				doc, err := parseHTML(f)
				if err != nil {
					return api.TestOutcome{Report: err.Error()}, nil
				}
				if doc.Find(tag).Length() > 0 {
					return api.TestOutcome{Score: 100}, nil
				}
			}
			return api.TestOutcome{Report: fmt.Sprintf("no element matching %q found", tag)}, nil
		})
}

// hasForbiddenTag passes when no selected HTML document matches the
// selector.
func hasForbiddenTag() *template.Func {
	descriptors := []api.ParamDescriptor{
		{Name: "tag", Description: "CSS selector that must not match", Type: "string"},
	}
	return template.NewFunc("has_forbidden_tag", api.FileKindHTML, descriptors,
		func(ctx context.Context, files []api.SubmissionFile, sb api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			tag := paramString(params, "tag")
			if tag == "" {
				return api.TestOutcome{Report: "no tag configured"}, nil
			}

			for _, f := range htmlFiles(files) {
				doc, err := parseHTML(f)
				if err != nil {
					return api.TestOutcome{Report: err.Error()}, nil
				}
				if doc.Find(tag).Length() > 0 {
					return api.TestOutcome{Report: fmt.Sprintf("forbidden element %q found in %s", tag, f.Name)}, nil
				}
			}
			return api.TestOutcome{Score: 100}, nil
		})
}

// tagCount checks how many elements match the selector across the
// selected documents, against a min and optional max.
func tagCount() *template.Func {
	descriptors := []api.ParamDescriptor{
		{Name: "tag", Description: "CSS selector to count", Type: "string"},
		{Name: "min", Description: "minimum number of matches", Type: "int"},
		{Name: "max", Description: "maximum number of matches, unbounded when absent", Type: "int"},
	}
	return template.NewFunc("tag_count", api.FileKindHTML, descriptors,
		func(ctx context.Context, files []api.SubmissionFile, sb api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			tag := paramString(params, "tag")
			if tag == "" {
				return api.TestOutcome{Report: "no tag configured"}, nil
			}
			min := paramInt(params, "min", 1)
			max := paramInt(params, "max", -1)

			count := 0
			for _, f := range htmlFiles(files) {
				doc, err := parseHTML(f)
				if err != nil {
					return api.TestOutcome{Report: err.Error()}, nil
				}
				count += doc.Find(tag).Length()
			}

			if count < min {
				return api.TestOutcome{Report: fmt.Sprintf("found %d elements matching %q, expected at least %d", count, tag, min)}, nil
			}
			if max >= 0 && count > max {
				return api.TestOutcome{Report: fmt.Sprintf("found %d elements matching %q, expected at most %d", count, tag, max)}, nil
			}
			return api.TestOutcome{Score: 100}, nil
		})
}

// hasLink checks for an anchor, optionally constrained by href and text.
func hasLink() *template.Func {
	descriptors := []api.ParamDescriptor{
		{Name: "href", Description: "required href value, any when absent", Type: "string"},
		{Name: "text", Description: "required link text, any when absent", Type: "string"},
	}
	return template.NewFunc("has_link", api.FileKindHTML, descriptors,
		func(ctx context.Context, files []api.SubmissionFile, sb api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			wantHref := paramString(params, "href")
			wantText := paramString(params, "text")

			for _, f := range htmlFiles(files) {
				doc, err := parseHTML(f)
				if err != nil {
					return api.TestOutcome{Report: err.Error()}, nil
				}

				found := false
				doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
					if wantHref != "" {
						href, _ := s.Attr("href")
						if href != wantHref {
							return true
						}
					}
					if wantText != "" && strings.TrimSpace(s.Text()) != wantText {
						return true
					}
					found = true
					return false
				})
				if found {
					return api.TestOutcome{Score: 100}, nil
				}
			}

			report := "no matching link found"
			if wantHref != "" {
				report = fmt.Sprintf("no link to %q found", wantHref)
			}
			return api.TestOutcome{Report: report}, nil
		})
}

// ruleRe extracts "selector { body }" blocks from a stylesheet. Nested
// at-rule bodies are not resolved; media query internals are matched as
// flat rules, which is sufficient for the checks this template offers.
var ruleRe = regexp.MustCompile(`(?s)([^{}]+)\{([^{}]*)\}`)

// hasStyle checks that a stylesheet declares a selector, optionally with
// a given property and value.
func hasStyle() *template.Func {
	descriptors := []api.ParamDescriptor{
		{Name: "selector", Description: "CSS selector that must be styled", Type: "string"},
		{Name: "property", Description: "required property inside the rule", Type: "string"},
		{Name: "value", Description: "required value of the property", Type: "string"},
	}
	return template.NewFunc("has_style", api.FileKindCSS, descriptors,
		func(ctx context.Context, files []api.SubmissionFile, sb api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			selector := paramString(params, "selector")
			if selector == "" {
				return api.TestOutcome{Report: "no selector configured"}, nil
			}
			property := paramString(params, "property")
			value := paramString(params, "value")

			for _, f := range cssFiles(files) {
				for _, match := range ruleRe.FindAllStringSubmatch(string(f.Content), -1) {
					if !selectorListContains(match[1], selector) {
						continue
					}
					if property == "" {
						return api.TestOutcome{Score: 100}, nil
					}
					if declarationMatches(match[2], property, value) {
						return api.TestOutcome{Score: 100}, nil
					}
				}
			}

			report := fmt.Sprintf("no rule for selector %q found", selector)
			if property != "" {
				report = fmt.Sprintf("selector %q does not set %s", selector, property)
				if value != "" {
					report = fmt.Sprintf("selector %q does not set %s to %s", selector, property, value)
				}
			}
			return api.TestOutcome{Report: report}, nil
		})
}

// selectorListContains matches one selector inside a comma-separated
// selector list.
func selectorListContains(list, selector string) bool {
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == selector {
			return true
		}
	}
	return false
}

// declarationMatches looks for "property: value" inside a rule body.
// value empty matches any.
func declarationMatches(body, property, value string) bool {
	for _, decl := range strings.Split(body, ";") {
		name, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(name), property) {
			continue
		}
		if value == "" || strings.EqualFold(strings.TrimSpace(val), value) {
			return true
		}
	}
	return false
}

var mediaQueryRe = regexp.MustCompile(`@media[^{]*\{`)

// checkMediaQueries requires a minimum number of @media blocks across
// the selected stylesheets.
func checkMediaQueries() *template.Func {
	descriptors := []api.ParamDescriptor{
		{Name: "min_queries", Description: "minimum number of media queries", Type: "int"},
	}
	return template.NewFunc("check_media_queries", api.FileKindCSS, descriptors,
		func(ctx context.Context, files []api.SubmissionFile, sb api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			min := paramInt(params, "min_queries", 1)

			count := 0
			for _, f := range cssFiles(files) {
				count += len(mediaQueryRe.FindAllString(string(f.Content), -1))
			}

			if count < min {
				return api.TestOutcome{Report: fmt.Sprintf("found %d media queries, expected at least %d", count, min)}, nil
			}
			return api.TestOutcome{Score: 100}, nil
		})
}
