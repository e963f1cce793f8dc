package status

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Type is what the status shows: text on a gradient or an uploaded image.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
)

// View count display formats.
const (
	ViewFormatExact       = "exact"
	ViewFormatAbbreviated = "abbreviated"
	ViewFormatThousands   = "thousands"
)

// MaxTextLength bounds the status text, in characters.
const MaxTextLength = 500

// Background is one selectable gradient.
type Background struct {
	ID    string
	Class string
}

// Backgrounds lists the gradients the control panel offers.
var Backgrounds = []Background{
	{ID: "gradient-1", Class: "status-gradient-1"},
	{ID: "gradient-2", Class: "status-gradient-2"},
	{ID: "gradient-3", Class: "status-gradient-3"},
	{ID: "gradient-4", Class: "status-gradient-4"},
	{ID: "gradient-5", Class: "status-gradient-5"},
	{ID: "gradient-6", Class: "status-gradient-6"},
}

var (
	ErrInvalidConfig = errors.New("invalid status config")
	ErrViewerIndex   = errors.New("viewer index out of range")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config describes the status being composed.
type Config struct {
	ViewCount      int      `json:"viewCount" yaml:"viewCount" validate:"gte=0"`
	StatusType     Type     `json:"statusType" yaml:"statusType" validate:"oneof=text image"`
	StatusText     string   `json:"statusText" yaml:"statusText" validate:"max=500"`
	BackgroundType string   `json:"backgroundType" yaml:"backgroundType" validate:"required,max=64"`
	ViewerNames    []string `json:"viewerNames" yaml:"viewerNames"`
	StatusImage    string   `json:"statusImage,omitempty" yaml:"statusImage,omitempty" validate:"omitempty,datauri"`
	ImageName      string   `json:"imageName,omitempty" yaml:"imageName,omitempty" validate:"max=255"`
	ViewFormat     string   `json:"viewFormat,omitempty" yaml:"viewFormat,omitempty" validate:"omitempty,oneof=exact abbreviated thousands"`
}

// DefaultConfig is the configuration a new session starts with.
func DefaultConfig() Config {
	return Config{
		ViewCount:      1247,
		StatusType:     TypeText,
		StatusText:     "Bonsoir tout le monde! 🌟\n\nPassez une excellente soirée",
		BackgroundType: "gradient-1",
		ViewerNames:    []string{},
		ViewFormat:     ViewFormatExact,
	}
}

// Validate checks the field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	ViewCount      *int
	StatusType     *Type
	StatusText     *string
	BackgroundType *string
	StatusImage    *string
	ImageName      *string
	ViewFormat     *string
	// ClearImage drops the image and falls back to a text status.
	ClearImage bool
}

// Apply returns a copy of c with p applied. c itself is never modified; on a
// validation error the zero Config is returned.
func (c Config) Apply(p Patch) (Config, error) {
	next := c
	next.ViewerNames = append([]string(nil), c.ViewerNames...)
	if p.ViewCount != nil {
		next.ViewCount = *p.ViewCount
	}
	if p.StatusType != nil {
		next.StatusType = *p.StatusType
	}
	if p.StatusText != nil {
		next.StatusText = *p.StatusText
	}
	if p.BackgroundType != nil {
		next.BackgroundType = *p.BackgroundType
	}
	if p.StatusImage != nil {
		next.StatusImage = *p.StatusImage
	}
	if p.ImageName != nil {
		next.ImageName = *p.ImageName
	}
	if p.ViewFormat != nil {
		next.ViewFormat = *p.ViewFormat
	}
	if p.ClearImage {
		next.StatusImage = ""
		next.ImageName = ""
		next.StatusType = TypeText
	}
	if err := next.Validate(); err != nil {
		return Config{}, err
	}
	return next, nil
}

// BackgroundClass returns the CSS class for the configured gradient, or "" for
// image statuses.
func (c Config) BackgroundClass() string {
	if c.StatusType == TypeImage {
		return ""
	}
	return "status-" + c.BackgroundType
}

// State is everything one session composes: the config and the viewer list.
type State struct {
	Config  Config   `json:"config" yaml:"config"`
	Viewers []Viewer `json:"viewers" yaml:"viewers"`
}

// DefaultState seeds a new session with the default config and three viewers.
func DefaultState() State {
	return State{
		Config: DefaultConfig(),
		Viewers: []Viewer{
			{
				Name:       "Marie Dubois",
				HasReacted: true,
				Reaction:   "❤️",
				TimeAgo:    "il y a 5 min",
				IsOnline:   true,
				Avatar:     Avatars[0],
			},
			{
				Name:       "Jean Martin",
				HasReacted: true,
				Reaction:   "👍",
				TimeAgo:    "il y a 12 min",
				IsOnline:   true,
				Avatar:     Avatars[1],
			},
			{
				Name:     "Sophie Laurent",
				TimeAgo:  "il y a 18 min",
				IsOnline: false,
				Avatar:   Avatars[2],
			},
		},
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Config.ViewerNames = append([]string(nil), s.Config.ViewerNames...)
	out.Viewers = append([]Viewer(nil), s.Viewers...)
	return out
}

// WithConfig returns a copy of s with c as its config.
func (s State) WithConfig(c Config) State {
	out := s.Clone()
	out.Config = c
	return out
}

// ReplaceViewers returns a copy of s with the given viewer list.
func (s State) ReplaceViewers(v []Viewer) State {
	out := s.Clone()
	out.Viewers = append([]Viewer(nil), v...)
	return out
}

// ClearViewers returns a copy of s with an empty viewer list.
func (s State) ClearViewers() State {
	return s.ReplaceViewers(nil)
}

// RemoveViewer returns a copy of s without the viewer at index i.
func (s State) RemoveViewer(i int) (State, error) {
	if i < 0 || i >= len(s.Viewers) {
		return State{}, fmt.Errorf("%w: %d", ErrViewerIndex, i)
	}
	out := s.Clone()
	out.Viewers = append(out.Viewers[:i], out.Viewers[i+1:]...)
	return out, nil
}

// RenameViewer returns a copy of s where only the name of viewer i changed.
func (s State) RenameViewer(i int, name string) (State, error) {
	if i < 0 || i >= len(s.Viewers) {
		return State{}, fmt.Errorf("%w: %d", ErrViewerIndex, i)
	}
	out := s.Clone()
	out.Viewers[i].Name = name
	return out, nil
}

// GenerateCount is the number of viewers the control panel asks for: the view count
// clamped to [1, 50], then capped to 20 so the list stays readable.
func GenerateCount(viewCount int) int {
	n := min(max(viewCount, 1), 50)
	return min(n, 20)
}
