// Package jsl defines the job specification language of the migration tool:
// a YAML document describing which models to import, from where, in which
// order and with which preparation rules.
package jsl

// JSLDefinitionBytes holds the content of a job definition file.
type JSLDefinitionBytes []byte

// Job is the top-level structure of a job definition file.
type Job struct {
	// ID is the unique identifier for the job.
	ID string `yaml:"id"`
	// Name is the logical name of the job.
	Name string `yaml:"name"`
	// Description is an optional description for the job.
	Description string `yaml:"description,omitempty"`
	// DryRun prepares and deduplicates records without writing them.
	DryRun bool `yaml:"dry-run,omitempty"`
	// StopOnError skips the remaining chunks of a model after a failed chunk.
	StopOnError bool `yaml:"stop-on-error,omitempty"`
	// SourceStorage names the storage connection that holds record sources.
	SourceStorage string `yaml:"source-storage,omitempty"`
	// SourceBucket is passed to the storage connection; empty uses its default.
	SourceBucket string `yaml:"source-bucket,omitempty"`
	// Models lists the models to import. Order is free; DependsOn decides it.
	Models []ModelStep `yaml:"models"`
}

// ModelStep describes the import of one remote model.
type ModelStep struct {
	// Model is the remote model name, e.g. "res.partner".
	Model string `yaml:"model"`
	// Source is the object holding the records (a JSON array of objects).
	Source string `yaml:"source"`
	// Mapping renames source columns to remote fields. Unmapped columns keep
	// their name.
	Mapping map[string]string `yaml:"mapping,omitempty"`
	// DependsOn lists models that must be imported first.
	DependsOn []string `yaml:"depends-on,omitempty"`
	// Dedupe overrides the global dedupe settings.
	Dedupe *Dedupe `yaml:"dedupe,omitempty"`
	// Defaults fill missing values.
	Defaults map[string]interface{} `yaml:"defaults,omitempty"`
	// SkipFields are never sent.
	SkipFields []string `yaml:"skip-fields,omitempty"`
	// References override how many-to-one fields are resolved.
	References map[string]Reference `yaml:"references,omitempty"`
	// Resume continues from the persisted batch state instead of starting over.
	Resume bool `yaml:"resume,omitempty"`
}

// Dedupe overrides dedupe settings for one model.
type Dedupe struct {
	KeyFields     []string `yaml:"key-fields,omitempty"`
	Strategy      string   `yaml:"strategy,omitempty"`
	CaseSensitive *bool    `yaml:"case-sensitive,omitempty"`
	CheckRemote   *bool    `yaml:"check-remote,omitempty"`
	CheckInBatch  *bool    `yaml:"check-in-batch,omitempty"`
}

// Reference tells how to resolve one many-to-one field.
type Reference struct {
	// Model overrides the relation target of the field.
	Model string `yaml:"model,omitempty"`
	// SearchField is the target field matched against the source value.
	SearchField string `yaml:"search-field,omitempty"`
}
