// Package config defines the service configuration (autograder.yaml) and
// the rubric documents that describe grading pipelines.
//
// The service configuration is YAML: server bind, rubric directory,
// fleet-wide sandbox constraints and the per-language pool table. Rubric
// documents are JSON, one per assignment, carrying the template name, the
// grading criteria, an optional preflight setup block and the feedback
// options. Setup blocks accept both a per-language mapping and a flat
// form that applies to every language; setup commands accept both the
// {name, command} object form and a bare command string.
package config
