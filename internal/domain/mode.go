package domain

import "fmt"

// Mode selects how a send is served.
type Mode int

const (
	ModeNormal Mode = iota
	ModeFast
	ModePro
	ModeDirect
	ModeSimple
	ModeImage
	ModeVideo
)

var modeNames = map[Mode]string{
	ModeNormal: "normal",
	ModeFast:   "fast",
	ModePro:    "pro",
	ModeDirect: "direct",
	ModeSimple: "simple",
	ModeImage:  "image",
	ModeVideo:  "video",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// IsText reports whether the mode is served by the text-completion provider.
func (m Mode) IsText() bool {
	switch m {
	case ModeNormal, ModeFast, ModePro, ModeDirect:
		return true
	}
	return false
}

// ParseMode maps a wire name to a Mode. Empty input means ModeNormal.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeNormal, nil
	}
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeNormal, fmt.Errorf("unknown mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
