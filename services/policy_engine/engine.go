// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package policy_engine classifies and redacts secrets in text captured
// from CI steps.
package policy_engine

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/auto-lang/Auto/services/policy_engine/enforcement"
)

// ClassPublic is returned by ClassifyData when nothing matches.
const ClassPublic = "public"

// PolicyEngine holds the compiled classifications.
//
// Thread Safety: Safe for concurrent use after construction.
type PolicyEngine struct {
	Classifiers []Classification
}

// NewPolicyEngine loads the policy embedded in the binary.
func NewPolicyEngine() (*PolicyEngine, error) {
	return NewPolicyEngineFromYAML(enforcement.SecretPatterns)
}

// NewPolicyEngineFromYAML builds an engine from a policy document.
//
// It performs the following operations:
// 1. Unmarshals the YAML.
// 2. Compiles all regex patterns.
// 3. Sorts classifications by priority.
func NewPolicyEngineFromYAML(data []byte) (*PolicyEngine, error) {
	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the policy file: %w", err)
	}
	if err := file.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a regex: %w", err)
	}
	file.SortByPriority()
	return &PolicyEngine{Classifiers: file.Classifications}, nil
}

// ClassifyData returns the name of the highest priority classification
// that matches data, or ClassPublic.
func (e *PolicyEngine) ClassifyData(data []byte) string {
	for _, classifier := range e.Classifiers {
		for _, pattern := range classifier.Patterns {
			if pattern.compiledPattern.Match(data) {
				return classifier.Name
			}
		}
	}
	return ClassPublic
}

// ScanFileContent checks every line of content against every pattern and
// reports each match with its line number.
func (e *PolicyEngine) ScanFileContent(content string) []ScanFinding {
	var findings []ScanFinding
	for lineNum, line := range strings.Split(content, "\n") {
		for _, classifier := range e.Classifiers {
			for _, pattern := range classifier.Patterns {
				match := pattern.compiledPattern.FindString(line)
				if match == "" {
					continue
				}
				findings = append(findings, ScanFinding{
					LineNumber:         lineNum + 1,
					MatchedContent:     mask(strings.TrimSpace(match)),
					ClassificationName: classifier.Name,
					PatternId:          pattern.Id,
					PatternDescription: pattern.Description,
					Confidence:         pattern.Confidence,
				})
			}
		}
	}
	return findings
}

// Redact replaces every match of a redacting classification with
// [REDACTED:<pattern id>].
func (e *PolicyEngine) Redact(s string) string {
	if s == "" {
		return s
	}
	for _, classifier := range e.Classifiers {
		if !classifier.Redact {
			continue
		}
		for _, pattern := range classifier.Patterns {
			s = pattern.compiledPattern.ReplaceAllLiteralString(s, "[REDACTED:"+pattern.Id+"]")
		}
	}
	return s
}

// mask keeps a short prefix so a finding can be matched to its source.
func mask(s string) string {
	const keep = 4
	if len(s) <= keep*2 {
		return strings.Repeat("*", len(s))
	}
	return s[:keep] + strings.Repeat("*", len(s)-keep)
}
