// Package config implements the Config Provider of spec §4.H: load,
// env-substitute, validate, merge, cache and transactionally reload the
// service's hierarchical configuration tree. Grounded on the original
// ConfigManager/ConfigLoader/EnvironmentProcessor split and loaded with
// github.com/spf13/viper the way ipiton-alert-history-service loads its own
// YAML configuration.
package config

import "time"

// SourceKind is the closed kind-variant for ingestion endpoints (§3, §9).
type SourceKind string

// Supported source kinds.
const (
	KindLocal SourceKind = "LOCAL"
	KindSMB   SourceKind = "SMB"
	KindFTP   SourceKind = "FTP"
)

// SourceDescriptor identifies one ingestion endpoint (§3).
type SourceDescriptor struct {
	Name                string            `mapstructure:"name"`
	Kind                SourceKind        `mapstructure:"kind"`
	Location            string            `mapstructure:"location"`
	FileMask            string            `mapstructure:"file_mask"`
	ProcessedDir        string            `mapstructure:"processed_dir"`
	ExcludedDir         string            `mapstructure:"excluded_dir"`
	BadDir              string            `mapstructure:"bad_dir"`
	FilteredTemplate    string            `mapstructure:"filtered_template"`
	ExcludedTemplate    string            `mapstructure:"excluded_template"`
	ComparisonListPath  string            `mapstructure:"comparison_list_path"`
	FilteringEnabled    bool              `mapstructure:"filtering_enabled"`
	CheckInterval       time.Duration     `mapstructure:"check_interval"`
	Enabled             bool              `mapstructure:"enabled"`
	Params              map[string]string `mapstructure:"params"`
	Filter              FilterSpec        `mapstructure:"filter"`
}

// FilterCriterion is one per-entry predicate evaluated against the
// reference list (§3).
type FilterCriterion struct {
	XPath      string  `mapstructure:"xpath"`
	Attribute  string  `mapstructure:"attribute"`
	CsvColumn  string  `mapstructure:"csv_column"`
	Required   bool    `mapstructure:"required"`
	Weight     float64 `mapstructure:"weight"`
}

// Operator is the logic combinator applied to a FilterSpec's criteria vector.
type Operator string

// Supported operators (§4.D).
const (
	OperatorAND      Operator = "AND"
	OperatorOR       Operator = "OR"
	OperatorMAJORITY Operator = "MAJORITY"
	OperatorWEIGHTED Operator = "WEIGHTED"
)

// Namespace is one prefix/uri pair registered on the XPath context.
type Namespace struct {
	Prefix string `mapstructure:"prefix"`
	URI    string `mapstructure:"uri"`
}

// RecordCountSpec is metadata-only per §3/§9 (no enforcement policy).
type RecordCountSpec struct {
	XPath     string `mapstructure:"xpath"`
	Attribute string `mapstructure:"attribute"`
}

// FilterSpec is the per-source filtering configuration (§3).
type FilterSpec struct {
	Criteria               []FilterCriterion `mapstructure:"criteria"`
	Operator               Operator          `mapstructure:"operator"`
	Threshold              float64           `mapstructure:"threshold"`
	Namespaces             []Namespace       `mapstructure:"namespaces"`
	AutoRegisterNamespaces bool              `mapstructure:"auto_register_namespaces"`
	ComparisonListPath     string            `mapstructure:"comparison_list_path"`
	RecordCount            *RecordCountSpec  `mapstructure:"record_count"`
}

// LogSinkConfig describes one attached logging sink (§4.H validation,
// §4.J sinks).
type LogSinkConfig struct {
	Type     string `mapstructure:"type"` // console | sync_file | async_file
	Level    string `mapstructure:"level"`
	Path     string `mapstructure:"path"`
	Fallback string `mapstructure:"fallback"`
	Rotation struct {
		Mode      string        `mapstructure:"mode"` // none | size | time
		MaxBytes  int64         `mapstructure:"max_bytes"`
		Interval  time.Duration `mapstructure:"interval"`
	} `mapstructure:"rotation"`
	QueueSize int `mapstructure:"queue_size"`
}

// Environment is one named environment block, deep-patched onto Defaults.
type Environment struct {
	Sources []SourceDescriptor `mapstructure:"sources"`
	Logging []LogSinkConfig    `mapstructure:"logging"`
}

// Tree is the two-section top-level configuration document (§4.H).
type Tree struct {
	Defaults     Environment            `mapstructure:"defaults"`
	Environments map[string]Environment `mapstructure:"environments"`
}

// Merged is the result of deep-patching Defaults with one named environment.
type Merged struct {
	Sources []SourceDescriptor
	Logging []LogSinkConfig
}
