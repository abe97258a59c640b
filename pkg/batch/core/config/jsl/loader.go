package jsl

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Dryik/migration-tool/pkg/batch/core/domain/model"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
	"github.com/Dryik/migration-tool/pkg/batch/support/util/logger"
)

// LoadJSLDefinitionFromBytes parses and validates one job definition.
func LoadJSLDefinitionFromBytes(data []byte) (*Job, error) {
	logger.Infof("Starting JSL definition loading.")

	var jobDef Job
	if err := yaml.Unmarshal(data, &jobDef); err != nil {
		return nil, exception.NewConfigError("jsl_loader", "Failed to parse JSL file", err)
	}
	if err := Validate(&jobDef); err != nil {
		return nil, err
	}

	logger.Infof("Loaded JSL job '%s' with %d models.", jobDef.ID, len(jobDef.Models))
	return &jobDef, nil
}

// Validate checks identifiers, duplicate models, dependencies on models the
// job does not import and dedupe strategies.
func Validate(jobDef *Job) error {
	if jobDef.ID == "" {
		return exception.NewConfigError("jsl_loader", "'id' is not defined in JSL file", nil)
	}
	if jobDef.Name == "" {
		return exception.NewConfigError("jsl_loader", fmt.Sprintf("JSL job '%s' does not have 'name' defined", jobDef.ID), nil)
	}
	if len(jobDef.Models) == 0 {
		return exception.NewConfigError("jsl_loader", fmt.Sprintf("JSL job '%s' does not have 'models' defined", jobDef.ID), nil)
	}

	seen := make(map[string]bool, len(jobDef.Models))
	for _, m := range jobDef.Models {
		if m.Model == "" {
			return exception.NewConfigError("jsl_loader", fmt.Sprintf("JSL job '%s' has a model step without 'model'", jobDef.ID), nil)
		}
		if seen[m.Model] {
			return exception.NewConfigError("jsl_loader", fmt.Sprintf("JSL job '%s' imports model '%s' twice", jobDef.ID, m.Model), nil)
		}
		seen[m.Model] = true
		if m.Dedupe != nil {
			if _, err := model.ParseDedupeStrategy(m.Dedupe.Strategy); err != nil {
				return exception.NewConfigError("jsl_loader", fmt.Sprintf("JSL job '%s' model '%s'", jobDef.ID, m.Model), err)
			}
		}
	}
	for _, m := range jobDef.Models {
		for _, dep := range m.DependsOn {
			if !seen[dep] {
				return exception.NewConfigError("jsl_loader", fmt.Sprintf("JSL job '%s' model '%s' depends on '%s', which the job does not import", jobDef.ID, m.Model, dep), nil)
			}
		}
	}
	return nil
}
