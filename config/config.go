// Package config loads the YAML file declaring the server, its HTTP client
// and the tables it serves.
//
// Settings sections are decoded with mapstructure so that durations
// ("10s"), shorthand parameters and unknown keys are handled uniformly.
// Description trees keep their YAML node form until they are converted,
// which preserves property order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/hugr-lab/restport/mapping"
	"github.com/hugr-lab/restport/render"
	"github.com/hugr-lab/restport/transport"
)

// ErrInvalid is wrapped by every validation error of a configuration file.
var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultAddress         = ":50051"
	DefaultMetricsAddress  = ":9464"
	DefaultSchema          = "main"
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultListingSchema   = "restport"

	// ListingDisabled as server.listing_schema turns the listing table off.
	ListingDisabled = "-"
)

// Config is a loaded configuration file.
type Config struct {
	Server Server
	HTTP   HTTP
	Tables []Table
}

// Server configures the Flight listener and the auxiliary HTTP listener.
type Server struct {
	Address string `mapstructure:"address"`
	// PublicAddress is advertised in Flight endpoint locations.
	PublicAddress string `mapstructure:"public_address"`
	// MetricsAddress serves /metrics and /healthz; "-" disables it.
	MetricsAddress  string            `mapstructure:"metrics_address"`
	LogLevel        string            `mapstructure:"log_level"`
	MaxMessageSize  int               `mapstructure:"max_message_size"`
	ShutdownTimeout time.Duration     `mapstructure:"shutdown_timeout"`
	// Tokens maps accepted bearer tokens to identities. Empty disables auth.
	Tokens map[string]string `mapstructure:"tokens"`
	// ListingSchema holds the "tables" table describing the served tables.
	ListingSchema string `mapstructure:"listing_schema"`
}

// Level parses LogLevel.
func (s Server) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: server.log_level: %v", ErrInvalid, err)
	}
	return l, nil
}

// HTTP configures the shared client used for upstream requests.
type HTTP struct {
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
	MaxBodyBytes        int64         `mapstructure:"max_body_bytes"`
	UserAgent           string        `mapstructure:"user_agent"`
}

// Transport returns the pool configuration. Zero fields take the pool's
// defaults.
func (h HTTP) Transport(logger *slog.Logger) transport.Config {
	return transport.Config{
		ConnectTimeout:      h.ConnectTimeout,
		ResponseTimeout:     h.ResponseTimeout,
		MaxIdleConns:        h.MaxIdleConns,
		MaxIdleConnsPerHost: h.MaxIdleConnsPerHost,
		IdleConnTimeout:     h.IdleConnTimeout,
		MaxBodyBytes:        h.MaxBodyBytes,
		UserAgent:           h.UserAgent,
		Logger:              logger,
	}
}

// Table declares one served table.
type Table struct {
	Name        string   `mapstructure:"name"`
	Schema      string   `mapstructure:"schema"`
	Comment     string   `mapstructure:"comment"`
	Addresses   []string `mapstructure:"addresses"`
	ContentType string   `mapstructure:"content_type"`
	BatchSize   int      `mapstructure:"batch_size"`
	Paging      Paging   `mapstructure:"paging"`
	Request     Request  `mapstructure:"request"`

	Parameters []Parameter `mapstructure:"parameters"`
	Filterable []Parameter `mapstructure:"filterable"`

	// DescriptionFile is a JSON or YAML document holding the description,
	// resolved relative to the configuration file.
	DescriptionFile string `mapstructure:"description_file"`

	// Description is built from the description, definitions, parameters
	// and paging settings.
	Description *mapping.Description `mapstructure:"-"`
}

// Paging configures offset pagination of a table.
type Paging struct {
	StartPage int `mapstructure:"start_page"`
	PageSize  int `mapstructure:"page_size"`
}

// Request holds the request templates of a table.
type Request struct {
	Method  string            `mapstructure:"method"`
	Path    string            `mapstructure:"path"`
	Headers map[string]string `mapstructure:"headers"`
	Body    string            `mapstructure:"body"`
}

// Spec returns the renderer spec of the request.
func (r Request) Spec() render.Spec {
	return render.Spec{Method: r.Method, Path: r.Path, Headers: r.Headers, Body: r.Body}
}

// Parameter declares a request-only field. In YAML it is either a bare
// field name (a string parameter) or a map of name, type, format and
// column_type.
type Parameter struct {
	Name       string `mapstructure:"name"`
	Type       string `mapstructure:"type"`
	Format     string `mapstructure:"format"`
	ColumnType string `mapstructure:"column_type"`
}

func (p Parameter) mapping() (mapping.Parameter, error) {
	if p.Name == "" {
		return mapping.Parameter{}, errors.New("parameter without a name")
	}
	kind := p.Type
	if kind == "" {
		kind = "string"
	}
	out := mapping.Parameter{Name: p.Name, Type: mapping.SourceType{Kind: kind, Format: p.Format}}
	if p.ColumnType != "" {
		t, ok := mapping.ParseScalarType(p.ColumnType)
		if !ok {
			return mapping.Parameter{}, fmt.Errorf("parameter %q: unknown column type %q", p.Name, p.ColumnType)
		}
		out.Override = t
	}
	return out, nil
}

// document is the raw YAML form of a configuration file.
type document struct {
	Server map[string]any  `yaml:"server"`
	HTTP   map[string]any  `yaml:"http"`
	Tables []tableDocument `yaml:"tables"`
}

type tableDocument struct {
	Description yaml.Node      `yaml:"description"`
	Definitions yaml.Node      `yaml:"definitions"`
	Settings    map[string]any `yaml:",inline"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses a configuration document. Relative description files are
// resolved against baseDir.
func Parse(data []byte, baseDir string) (*Config, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	cfg := &Config{}
	if err := decode(doc.Server, &cfg.Server); err != nil {
		return nil, fmt.Errorf("%w: server: %v", ErrInvalid, err)
	}
	if err := decode(doc.HTTP, &cfg.HTTP); err != nil {
		return nil, fmt.Errorf("%w: http: %v", ErrInvalid, err)
	}

	for i, td := range doc.Tables {
		t, err := parseTable(td, baseDir)
		if err != nil {
			return nil, fmt.Errorf("%w: tables[%d]: %v", ErrInvalid, i, err)
		}
		cfg.Tables = append(cfg.Tables, t)
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseTable(td tableDocument, baseDir string) (Table, error) {
	var t Table
	if err := decode(td.Settings, &t); err != nil {
		return t, err
	}

	root := &td.Description
	if t.DescriptionFile != "" {
		if root.Kind != 0 {
			return t, errors.New("description and description_file are mutually exclusive")
		}
		var err error
		if root, err = readDescription(t.DescriptionFile, baseDir); err != nil {
			return t, err
		}
	}
	if root.Kind == 0 {
		return t, errors.New("description is required")
	}

	desc, err := buildDescription(root, &td.Definitions)
	if err != nil {
		return t, fmt.Errorf("table %q: %w", t.Name, err)
	}
	desc.Name = t.Name
	desc.Paging = mapping.Paging{StartPage: t.Paging.StartPage, PageSize: t.Paging.PageSize}
	for _, p := range t.Parameters {
		mp, err := p.mapping()
		if err != nil {
			return t, fmt.Errorf("table %q: %w", t.Name, err)
		}
		desc.Parameters = append(desc.Parameters, mp)
	}
	for _, p := range t.Filterable {
		mp, err := p.mapping()
		if err != nil {
			return t, fmt.Errorf("table %q: %w", t.Name, err)
		}
		desc.Filterable = append(desc.Filterable, mp)
	}
	t.Description = desc
	return t, nil
}

func readDescription(file, baseDir string) (*yaml.Node, error) {
	if !filepath.IsAbs(file) {
		file = filepath.Join(baseDir, file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}
	// JSON documents are valid YAML, and YAML nodes keep key order.
	var n yaml.Node
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("parse description %s: %w", file, err)
	}
	return &n, nil
}

// decode maps a generic YAML section onto a settings struct. Unknown keys
// are errors.
func decode(input map[string]any, out any) error {
	if input == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToParameterHook,
		),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

var parameterType = reflect.TypeOf(Parameter{})

// stringToParameterHook accepts a bare field name where a Parameter is
// expected.
func stringToParameterHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != parameterType {
		return data, nil
	}
	return Parameter{Name: data.(string), Type: "string"}, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultAddress
	}
	if cfg.Server.MetricsAddress == "" {
		cfg.Server.MetricsAddress = DefaultMetricsAddress
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Server.ListingSchema == "" {
		cfg.Server.ListingSchema = DefaultListingSchema
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	for i := range cfg.Tables {
		if cfg.Tables[i].Schema == "" {
			cfg.Tables[i].Schema = DefaultSchema
		}
	}
}

func validate(cfg *Config) error {
	if _, err := cfg.Server.Level(); err != nil {
		return err
	}
	if cfg.Server.MaxMessageSize < 0 {
		return fmt.Errorf("%w: server.max_message_size must not be negative", ErrInvalid)
	}
	if len(cfg.Tables) == 0 {
		return fmt.Errorf("%w: no tables declared", ErrInvalid)
	}

	seen := map[string]bool{}
	for i, t := range cfg.Tables {
		switch {
		case t.Name == "":
			return fmt.Errorf("%w: tables[%d]: name is required", ErrInvalid, i)
		case len(t.Addresses) == 0:
			return fmt.Errorf("%w: table %q: at least one address is required", ErrInvalid, t.Name)
		case t.Request.Path == "":
			return fmt.Errorf("%w: table %q: request.path is required", ErrInvalid, t.Name)
		case t.BatchSize < 0:
			return fmt.Errorf("%w: table %q: batch_size must not be negative", ErrInvalid, t.Name)
		}
		if t.Schema == cfg.Server.ListingSchema {
			return fmt.Errorf("%w: table %q: schema %q is reserved for the table listing", ErrInvalid, t.Name, t.Schema)
		}
		key := t.Schema + "." + t.Name
		if seen[key] {
			return fmt.Errorf("%w: table %q declared twice in schema %q", ErrInvalid, t.Name, t.Schema)
		}
		seen[key] = true
	}
	return nil
}

// Schemas returns the declared schema names in first-use order.
func (c *Config) Schemas() []string {
	var names []string
	seen := map[string]bool{}
	for _, t := range c.Tables {
		if !seen[t.Schema] {
			seen[t.Schema] = true
			names = append(names, t.Schema)
		}
	}
	return names
}
