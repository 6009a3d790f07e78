package cron_feature

// CronScript is one executable step of a CronConfig. It never exists outside
// of its owning config.
type CronScript struct {
	Name       string `json:"name" bson:"name" yaml:"name"`
	ModulePath string `json:"modulePath" bson:"module_path" yaml:"modulePath"`
	Enabled    bool   `json:"enabled" bson:"enabled" yaml:"enabled"`
	Order      int    `json:"order" bson:"order" yaml:"order"`
}

// CronScriptInput carries the caller supplied fields of a script. Nil fields
// take their defaults.
type CronScriptInput struct {
	Name       string `json:"name" yaml:"name"`
	ModulePath string `json:"modulePath" yaml:"modulePath"`
	Enabled    *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Order      *int   `json:"order,omitempty" yaml:"order,omitempty"`
}

// CronScriptPatch is a partial update applied by CronConfig.UpdateScript.
type CronScriptPatch struct {
	Name       *string `json:"name,omitempty"`
	ModulePath *string `json:"modulePath,omitempty"`
	Enabled    *bool   `json:"enabled,omitempty"`
	Order      *int    `json:"order,omitempty"`
}

func NewCronScript(in CronScriptInput) CronScript {
	s := CronScript{
		Name:       in.Name,
		ModulePath: in.ModulePath,
		Enabled:    true,
	}
	if in.Enabled != nil {
		s.Enabled = *in.Enabled
	}
	if in.Order != nil {
		s.Order = *in.Order
	}
	return s
}

// Input returns the script as constructor input, so a typed script converts
// back into an identical one.
func (s CronScript) Input() CronScriptInput {
	enabled, order := s.Enabled, s.Order
	return CronScriptInput{
		Name:       s.Name,
		ModulePath: s.ModulePath,
		Enabled:    &enabled,
		Order:      &order,
	}
}

// Validate returns every problem found; an empty result means the script is valid.
func (s CronScript) Validate() []string {
	var errs []string
	if s.Name == "" {
		errs = append(errs, "Script name is required and must be a string")
	}
	if s.ModulePath == "" {
		errs = append(errs, "Script modulePath is required and must be a string")
	}
	if s.Order < 0 {
		errs = append(errs, "Script order must be a non-negative number")
	}
	return errs
}

func (s CronScript) IsEnabled() bool {
	return s.Enabled
}

func (s CronScript) apply(p CronScriptPatch) CronScript {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.ModulePath != nil {
		s.ModulePath = *p.ModulePath
	}
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.Order != nil {
		s.Order = *p.Order
	}
	return s
}
