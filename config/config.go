package config

// Config represents the complete pratt configuration
type Config struct {
	BaseDir   string        `yaml:"-"` // Directory containing config file, for resolving relative paths
	Notations []Notation    `yaml:"notations"`
	Parser    ParserConfig  `yaml:"parser"`
	Logging   LoggingConfig `yaml:"logging"`
	REPL      REPLConfig    `yaml:"repl"`
}

// Notation kinds
const (
	KindInfix       = "infix"       // a + b
	KindPrefix      = "prefix"      // -a
	KindPostfix     = "postfix"     // a!
	KindConditional = "conditional" // c ? a : b, with Separator between the branches
	KindTerminator  = "terminator"  // closes an expression, never applied
)

// Notation declares one operator of the expression grammar. Several symbols
// may share a declaration ("symbol: [\"%\", mod]").
type Notation struct {
	Symbol     StringOrSlice `yaml:"symbol"`
	Kind       string        `yaml:"kind"`       // infix, prefix, postfix, conditional, terminator
	Precedence int           `yaml:"precedence"` // 0 to registry.MaxPrec
	Assoc      string        `yaml:"assoc"`      // left (default) or right; infix and conditional only
	Op         string        `yaml:"op"`         // evaluator operation; defaults from the symbol
	Separator  string        `yaml:"separator"`  // conditional only (default ":")
}

// Leading reports whether the notation starts an expression.
func (n Notation) Leading() bool {
	return n.Kind == KindPrefix
}

// ParserConfig holds engine limits
type ParserConfig struct {
	MaxDepth int `yaml:"max_depth"` // recursion guard for nested expressions
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stderr, stdout, or file path
}

// REPLConfig holds interactive shell settings
type REPLConfig struct {
	History string `yaml:"history"` // history file; empty disables history
	Prompt  string `yaml:"prompt"`
	Locale  string `yaml:"locale"` // BCP 47 tag for number output, e.g. en-GB; empty prints plain numbers
}

// StringOrSlice supports YAML fields that can be either a string or a slice of strings
type StringOrSlice []string

// UnmarshalYAML implements yaml.Unmarshaler to handle both string and []string
func (s *StringOrSlice) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}

	var slice []string
	if err := unmarshal(&slice); err != nil {
		return err
	}
	*s = slice
	return nil
}

// Contains checks if the slice contains the given string
func (s StringOrSlice) Contains(str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}

// DefaultNotations is the calculator's operator table.
func DefaultNotations() []Notation {
	return []Notation{
		{Symbol: StringOrSlice{"?"}, Kind: KindConditional, Precedence: 2, Assoc: "right", Separator: ":"},
		{Symbol: StringOrSlice{"or", "||"}, Kind: KindInfix, Precedence: 4, Op: "or"},
		{Symbol: StringOrSlice{"and", "&&"}, Kind: KindInfix, Precedence: 5, Op: "and"},
		{Symbol: StringOrSlice{"not", "!"}, Kind: KindPrefix, Precedence: 6, Op: "not"},
		{Symbol: StringOrSlice{"==", "!=", "<", "<=", ">", ">="}, Kind: KindInfix, Precedence: 10},
		{Symbol: StringOrSlice{"++"}, Kind: KindInfix, Precedence: 15, Op: "concat"},
		{Symbol: StringOrSlice{"+", "-"}, Kind: KindInfix, Precedence: 20},
		{Symbol: StringOrSlice{"*", "/"}, Kind: KindInfix, Precedence: 30},
		{Symbol: StringOrSlice{"%", "mod"}, Kind: KindInfix, Precedence: 30, Op: "mod"},
		{Symbol: StringOrSlice{"-"}, Kind: KindPrefix, Precedence: 35, Op: "neg"},
		{Symbol: StringOrSlice{"^"}, Kind: KindInfix, Precedence: 40, Assoc: "right", Op: "pow"},
		{Symbol: StringOrSlice{"!"}, Kind: KindPostfix, Precedence: 50, Op: "fact"},
	}
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Notations: DefaultNotations(),
		Parser: ParserConfig{
			MaxDepth: 512,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
		REPL: REPLConfig{
			History: "~/.pratt_history",
			Prompt:  ">> ",
		},
	}
}
