// Package schema defines the Parsing Schema data model: field definitions,
// pagination rules, and the navigation script used by browser-mode fetches.
// The Validate/ApplyDefaults pair follows the layered-config idiom used
// throughout this codebase's configuration types: load permissively, apply
// defaults, then validate before the schema is trusted by any component.
package schema

import (
	"fmt"
	"regexp"
)

// FieldType is the closed set of coercion targets for an extracted value.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeInteger  FieldType = "integer"
	TypeFloat    FieldType = "float"
	TypeBoolean  FieldType = "boolean"
	TypeDatetime FieldType = "datetime"
	TypeURL      FieldType = "url"
	TypeList     FieldType = "list"
	TypeJSON     FieldType = "json"
)

// Method is the closed set of selector evaluation strategies.
type Method string

const (
	MethodCSS      Method = "css"
	MethodXPath    Method = "xpath"
	MethodRegex    Method = "regex"
	MethodJSONPath Method = "json_path"
)

// PaginationType is the closed set of pagination strategies.
type PaginationType string

const (
	PaginationNextButton    PaginationType = "next_button"
	PaginationPageParam     PaginationType = "page_param"
	PaginationInfiniteScroll PaginationType = "infinite_scroll"
	PaginationLoadMore      PaginationType = "load_more"
	PaginationNone          PaginationType = "none"
)

// NavigationAction is the closed set of browser-mode navigation steps.
type NavigationAction string

const (
	ActionGoto       NavigationAction = "goto"
	ActionClick      NavigationAction = "click"
	ActionScroll     NavigationAction = "scroll"
	ActionWait       NavigationAction = "wait"
	ActionInput      NavigationAction = "input"
	ActionHover      NavigationAction = "hover"
	ActionSelect     NavigationAction = "select"
	ActionScreenshot NavigationAction = "screenshot"
)

// FetchMode selects which fetcher handles a schema's tasks.
type FetchMode string

const (
	ModeHTTP    FetchMode = "http"
	ModeBrowser FetchMode = "browser"
)

// FieldDefinition describes how to locate, transform, and coerce one named
// value within a record root.
type FieldDefinition struct {
	Name               string    `json:"name" yaml:"name"`
	Type               FieldType `json:"type" yaml:"type"`
	Method             Method    `json:"method" yaml:"method"`
	Selector           string    `json:"selector" yaml:"selector"`
	Attribute          string    `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Required           bool      `json:"required" yaml:"required"`
	Default            any       `json:"default,omitempty" yaml:"default,omitempty"`
	Transformations    []string  `json:"transformations,omitempty" yaml:"transformations,omitempty"`
	ValidationRegex    string    `json:"validation_regex,omitempty" yaml:"validation_regex,omitempty"`
	FallbackSelectors  []string  `json:"fallback_selectors,omitempty" yaml:"fallback_selectors,omitempty"`

	compiledValidation *regexp.Regexp
}

// CompiledValidation lazily compiles and caches ValidationRegex.
func (f *FieldDefinition) CompiledValidation() (*regexp.Regexp, error) {
	if f.ValidationRegex == "" {
		return nil, nil
	}
	if f.compiledValidation != nil {
		return f.compiledValidation, nil
	}
	re, err := regexp.Compile(f.ValidationRegex)
	if err != nil {
		return nil, fmt.Errorf("field %q: invalid validation_regex: %w", f.Name, err)
	}
	f.compiledValidation = re
	return re, nil
}

// NavigationStep is one entry of a schema's pre-extraction browser script.
type NavigationStep struct {
	Action  NavigationAction `json:"action" yaml:"action"`
	Target  string           `json:"target,omitempty" yaml:"target,omitempty"`
	Value   string           `json:"value,omitempty" yaml:"value,omitempty"`
	WaitMS  int              `json:"wait_ms,omitempty" yaml:"wait_ms,omitempty"`
	WaitFor string           `json:"wait_for,omitempty" yaml:"wait_for,omitempty"`
	// Optional: if true, step failure is logged and skipped rather than
	// aborting the task with a retryable error.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// PaginationRule describes how to discover the next page of a paginated
// listing.
type PaginationRule struct {
	Type          PaginationType `json:"type" yaml:"type"`
	Selector      string         `json:"selector,omitempty" yaml:"selector,omitempty"`
	ParamName     string         `json:"param_name,omitempty" yaml:"param_name,omitempty"`
	ParamStart    int            `json:"param_start,omitempty" yaml:"param_start,omitempty"`
	ParamStep     int            `json:"param_step,omitempty" yaml:"param_step,omitempty"`
	MaxPages      int            `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`
	StopSelector  string         `json:"stop_selector,omitempty" yaml:"stop_selector,omitempty"`
	ScrollDelayMS int            `json:"scroll_delay_ms,omitempty" yaml:"scroll_delay_ms,omitempty"`
}

// ApplyDefaults fills in the pagination rule's zero-value fields with their
// documented defaults.
func (p *PaginationRule) ApplyDefaults() {
	if p.Type == "" {
		p.Type = PaginationNone
	}
	if p.ParamStart == 0 {
		p.ParamStart = 1
	}
	if p.ParamStep == 0 {
		p.ParamStep = 1
	}
	if p.MaxPages == 0 {
		p.MaxPages = 10
	}
	if p.ScrollDelayMS == 0 {
		p.ScrollDelayMS = 1000
	}
}

// Validate checks the pagination rule's invariants.
func (p PaginationRule) Validate() error {
	switch p.Type {
	case PaginationNextButton, PaginationLoadMore:
		if p.Selector == "" {
			return fmt.Errorf("pagination type %q requires a selector", p.Type)
		}
	case PaginationPageParam:
		if p.ParamName == "" {
			return fmt.Errorf("pagination type %q requires param_name", p.Type)
		}
	case PaginationInfiniteScroll, PaginationNone:
		// no required fields
	default:
		return fmt.Errorf("unknown pagination type %q", p.Type)
	}
	if p.MaxPages < 1 || p.MaxPages > 1000 {
		return fmt.Errorf("max_pages must be in [1,1000], got %d", p.MaxPages)
	}
	return nil
}

// ParsingSchema is the full declarative description of how to locate and
// normalize records on a class of pages.
type ParsingSchema struct {
	SchemaID          string            `json:"schema_id" yaml:"schema_id"`
	Version           string            `json:"version" yaml:"version"`
	SourceID          string            `json:"source_id" yaml:"source_id"`
	Description       string            `json:"description,omitempty" yaml:"description,omitempty"`
	StartURL          string            `json:"start_url" yaml:"start_url"`
	URLPattern         string            `json:"url_pattern,omitempty" yaml:"url_pattern,omitempty"`
	NavigationSteps    []NavigationStep  `json:"navigation_steps,omitempty" yaml:"navigation_steps,omitempty"`
	Pagination        *PaginationRule   `json:"pagination,omitempty" yaml:"pagination,omitempty"`
	ItemContainer     string            `json:"item_container,omitempty" yaml:"item_container,omitempty"`
	Fields            []FieldDefinition `json:"fields" yaml:"fields"`
	MinFieldsRequired int               `json:"min_fields_required" yaml:"min_fields_required"`
	DedupKeys         []string          `json:"dedup_keys,omitempty" yaml:"dedup_keys,omitempty"`
	Mode              FetchMode         `json:"mode" yaml:"mode"`
	RequiresJS        bool              `json:"requires_js" yaml:"requires_js"`
	RequestHeaders    map[string]string `json:"request_headers,omitempty" yaml:"request_headers,omitempty"`
	IsActive          bool              `json:"is_active" yaml:"is_active"`
}

// ApplyDefaults fills zero-value fields with the schema's documented
// defaults, mirroring the layered-config ApplyDefaults idiom used for
// worker and coordinator configuration.
func (s *ParsingSchema) ApplyDefaults() {
	if s.Version == "" {
		s.Version = "1.0.0"
	}
	if s.MinFieldsRequired == 0 {
		s.MinFieldsRequired = 1
	}
	if s.Mode == "" {
		s.Mode = ModeHTTP
	}
	if s.Pagination != nil {
		s.Pagination.ApplyDefaults()
	}
}

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Validate enforces the schema's structural invariants: unique field names,
// dedup_keys drawn from the field set, a well-formed semantic version, and a
// valid pagination rule when one is present.
func (s ParsingSchema) Validate() error {
	if s.SchemaID == "" {
		return fmt.Errorf("schema_id is required")
	}
	if s.SourceID == "" {
		return fmt.Errorf("source_id is required")
	}
	if s.StartURL == "" {
		return fmt.Errorf("start_url is required")
	}
	if !semverPattern.MatchString(s.Version) {
		return fmt.Errorf("version %q is not a valid semantic version", s.Version)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("at least one field is required")
	}
	if s.Mode != ModeHTTP && s.Mode != ModeBrowser {
		return fmt.Errorf("unknown mode %q", s.Mode)
	}

	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("field name must not be empty")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if err := validateFieldType(f.Type); err != nil {
			return err
		}
		if err := validateMethod(f.Method); err != nil {
			return err
		}
		if _, err := f.CompiledValidation(); err != nil {
			return err
		}
	}

	for _, k := range s.DedupKeys {
		if _, ok := seen[k]; !ok {
			return fmt.Errorf("dedup_keys entry %q is not a declared field", k)
		}
	}

	if s.Pagination != nil {
		if err := s.Pagination.Validate(); err != nil {
			return fmt.Errorf("pagination: %w", err)
		}
	}

	return nil
}

func validateFieldType(t FieldType) error {
	switch t {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeDatetime, TypeURL, TypeList, TypeJSON:
		return nil
	default:
		return fmt.Errorf("unknown field type %q", t)
	}
}

func validateMethod(m Method) error {
	switch m {
	case MethodCSS, MethodXPath, MethodRegex, MethodJSONPath:
		return nil
	default:
		return fmt.Errorf("unknown selector method %q", m)
	}
}
