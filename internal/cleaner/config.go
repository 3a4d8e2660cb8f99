package cleaner

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config drives one cleaning run. It is loaded from JSON so the column
// mapping can track raw export format changes without a rebuild.
type Config struct {
	Prefilters  Prefilters  `json:"prefilters"`
	JSONFlatten JSONFlatten `json:"json_flatten"`
	// DropColumns are doublestar glob patterns matched against column names;
	// matching columns are removed from the cleaned full table.
	DropColumns []string  `json:"drop_columns"`
	Metadata    Metadata  `json:"metadata"`
	Documents   Documents `json:"documents"`
	Outputs     Outputs   `json:"outputs"`
}

// Prefilters drop rows before any column work happens.
type Prefilters struct {
	StudyTypeCol         string   `json:"study_type_col"`
	DayStudyCode         string   `json:"day_study_code"`
	DurationCol          string   `json:"duration_col"`
	MaxDurationSemesters float64  `json:"max_duration_semesters"`
	StateCols            []string `json:"state_cols"`
	BadStateRegex        string   `json:"bad_state_regex"`

	badState *regexp.Regexp
}

// JSONFlatten controls expansion of embedded-JSON columns into
// __codes/__names/__count triples.
type JSONFlatten struct {
	AutoDetect bool     `json:"auto_detect"`
	Columns    []string `json:"columns"`
}

// Metadata selects the columns of the metadata output.
type Metadata struct {
	BaseFields []string `json:"base_fields"`
	Derived    Derived  `json:"derived"`
}

// Derived holds optional derived metadata columns.
type Derived struct {
	StudyLevelsCodes StudyLevelsCodes `json:"study_levels_codes"`
}

// StudyLevelsCodes derives a flat study-level code list from a JSON column.
type StudyLevelsCodes struct {
	Enabled   bool   `json:"enabled"`
	SourceCol string `json:"source_col"`
	OutputCol string `json:"output_col"`
}

// Documents controls the denormalized RAG text build.
type Documents struct {
	Keys             []string                       `json:"keys"`
	KeysFromMetadata []string                       `json:"keys_from_metadata"`
	IncludeSections  []string                       `json:"include_sections"`
	SectionFields    map[string]map[string][]string `json:"section_fields"`
}

// Outputs names the files written into the output directory.
type Outputs struct {
	FullCleaned string `json:"full_cleaned"`
	Metadata    string `json:"metadata"`
	Documents   string `json:"documents"`
	Report      string `json:"report"`
}

// LoadConfig reads and validates a cleaning config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cleaner config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing cleaner config: %w", err)
	}
	if err := cfg.compile(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) compile() error {
	if c.Prefilters.BadStateRegex != "" {
		re, err := regexp.Compile("(?i)" + c.Prefilters.BadStateRegex)
		if err != nil {
			return fmt.Errorf("compiling bad_state_regex: %w", err)
		}
		c.Prefilters.badState = re
	}
	if c.Outputs.FullCleaned == "" {
		c.Outputs.FullCleaned = "courses_full_cleaned.csv"
	}
	if c.Outputs.Metadata == "" {
		c.Outputs.Metadata = "courses_metadata.csv"
	}
	if c.Outputs.Documents == "" {
		c.Outputs.Documents = "courses_documents.csv"
	}
	if c.Outputs.Report == "" {
		c.Outputs.Report = "cleaning_report.json"
	}
	return nil
}
