package domain

// VoiceType classifies how a text sounds.
type VoiceType string

const (
	VoiceManufactured VoiceType = "manufactured"
	VoiceMixed        VoiceType = "mixed"
	VoiceAuthentic    VoiceType = "authentic"
	VoiceUnknown      VoiceType = "unknown"
)

// ParseVoiceType maps model output onto a known voice type.
func ParseVoiceType(value string) (VoiceType, bool) {
	switch VoiceType(value) {
	case VoiceManufactured, VoiceMixed, VoiceAuthentic:
		return VoiceType(value), true
	}
	return VoiceUnknown, false
}

// AuthenticitySource records where an analysis came from.
type AuthenticitySource string

const (
	SourceModel     AuthenticitySource = "model"
	SourceHeuristic AuthenticitySource = "heuristic"
	SourceNone      AuthenticitySource = "none"
)

// AuthenticityAnalysis scores manufactured versus authentic voice.
// Score is nil when no analysis is available.
type AuthenticityAnalysis struct {
	Score      *float64           `json:"score"`
	VoiceType  VoiceType          `json:"voice_type"`
	RedFlags   []string           `json:"red_flags"`
	GreenFlags []string           `json:"green_flags"`
	Source     AuthenticitySource `json:"source"`
}

// Available reports whether a numeric authenticity score exists.
func (a AuthenticityAnalysis) Available() bool {
	return a.Score != nil
}

// NeutralAuthenticity is the explicit "unknown" value used when detection failed.
func NeutralAuthenticity() AuthenticityAnalysis {
	return AuthenticityAnalysis{
		VoiceType:  VoiceUnknown,
		RedFlags:   []string{},
		GreenFlags: []string{},
		Source:     SourceNone,
	}
}
