// pkg/core/mapinfo.go
package core

import "fmt"

// Difficulty is a named difficulty level. Its value is the difficulty rank.
type Difficulty uint8

const (
	DifficultyEasy       Difficulty = 1
	DifficultyNormal     Difficulty = 3
	DifficultyHard       Difficulty = 5
	DifficultyExpert     Difficulty = 7
	DifficultyExpertPlus Difficulty = 9
)

// BadDifficultyError is returned when a difficulty name is not recognized.
type BadDifficultyError struct {
	Name string
}

func (e *BadDifficultyError) Error() string {
	return fmt.Sprintf("unexpected beatmap difficulty %q", e.Name)
}

// ParseDifficulty converts a textual difficulty name into a Difficulty.
// Both "ExpertPlus" and "Expert+" are accepted.
func ParseDifficulty(name string) (Difficulty, error) {
	switch name {
	case "Easy":
		return DifficultyEasy, nil
	case "Normal":
		return DifficultyNormal, nil
	case "Hard":
		return DifficultyHard, nil
	case "Expert":
		return DifficultyExpert, nil
	case "ExpertPlus", "Expert+":
		return DifficultyExpertPlus, nil
	default:
		return 0, &BadDifficultyError{Name: name}
	}
}

// DifficultyFromRank returns the difficulty for a rank, if any.
func DifficultyFromRank(rank uint8) (Difficulty, bool) {
	d := Difficulty(rank)
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard, DifficultyExpert, DifficultyExpertPlus:
		return d, true
	default:
		return 0, false
	}
}

// Rank returns the numeric rank stored in map metadata.
func (d Difficulty) Rank() uint8 {
	return uint8(d)
}

func (d Difficulty) String() string {
	switch d {
	case DifficultyEasy:
		return "Easy"
	case DifficultyNormal:
		return "Normal"
	case DifficultyHard:
		return "Hard"
	case DifficultyExpert:
		return "Expert"
	case DifficultyExpertPlus:
		return "ExpertPlus"
	default:
		return fmt.Sprintf("Difficulty(%d)", uint8(d))
	}
}

// MarshalText encodes d by name.
func (d Difficulty) MarshalText() ([]byte, error) {
	if _, ok := DifficultyFromRank(uint8(d)); !ok {
		return nil, fmt.Errorf("cannot marshal %s", d)
	}
	return []byte(d.String()), nil
}

// UnmarshalText accepts any name ParseDifficulty accepts.
func (d *Difficulty) UnmarshalText(text []byte) error {
	parsed, err := ParseDifficulty(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Characteristic is the play-mode variant a difficulty belongs to.
// Unknown names are kept verbatim.
type Characteristic string

const (
	CharacteristicStandard  Characteristic = "Standard"
	CharacteristicNoArrows  Characteristic = "NoArrows"
	CharacteristicOneSaber  Characteristic = "OneSaber"
	Characteristic360Degree Characteristic = "360Degree"
	Characteristic90Degree  Characteristic = "90Degree"
	CharacteristicLegacy    Characteristic = "Legacy"
)

// IsKnown reports whether c is one of the built-in characteristics.
func (c Characteristic) IsKnown() bool {
	switch c {
	case CharacteristicStandard, CharacteristicNoArrows, CharacteristicOneSaber,
		Characteristic360Degree, Characteristic90Degree, CharacteristicLegacy:
		return true
	default:
		return false
	}
}

// SongMeta describes the song a map set is built for.
type SongMeta struct {
	Title          string `json:"title" yaml:"title"`
	Subtitle       string `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Author         string `json:"author" yaml:"author"`
	LevelAuthor    string `json:"levelAuthor" yaml:"levelAuthor"`
	CoverImagePath string `json:"coverImagePath" yaml:"coverImagePath"`
}

// AudioMeta holds the tempo and audio file information shared by every difficulty.
type AudioMeta struct {
	BPM             float64 `json:"bpm" yaml:"bpm"`
	SongTimeOffset  float64 `json:"songTimeOffset" yaml:"songTimeOffset"`
	AudioPath       string  `json:"audioPath" yaml:"audioPath"`
	PreviewStart    float64 `json:"previewStart" yaml:"previewStart"`
	PreviewDuration float64 `json:"previewDuration" yaml:"previewDuration"`
}

// DifficultyMap is one normalized difficulty of a map set.
type DifficultyMap struct {
	Difficulty     Difficulty     `json:"difficulty" yaml:"difficulty"`
	Characteristic Characteristic `json:"characteristic" yaml:"characteristic"`
	Filename       string         `json:"filename" yaml:"filename"`
	Version        string         `json:"version" yaml:"version"`
	NJS            float64        `json:"njs" yaml:"njs"`
	NJSOffset      float64        `json:"njsOffset" yaml:"njsOffset"`
	Map            Beatmap        `json:"map" yaml:"map"`
}

// DifficultyFailure records a difficulty that could not be loaded.
type DifficultyFailure struct {
	Characteristic Characteristic `json:"characteristic" yaml:"characteristic"`
	Difficulty     string         `json:"difficulty" yaml:"difficulty"`
	Filename       string         `json:"filename" yaml:"filename"`
	Err            error          `json:"-" yaml:"-"`
}

// MapInfo is a fully loaded map set. Hash is the uppercase hex SHA-1 of the
// metadata document followed by every referenced difficulty file.
type MapInfo struct {
	Hash        string              `json:"hash" yaml:"hash"`
	Song        SongMeta            `json:"song" yaml:"song"`
	Audio       AudioMeta           `json:"audio" yaml:"audio"`
	Environment string              `json:"environment" yaml:"environment"`
	Maps        []DifficultyMap     `json:"maps" yaml:"maps"`
	Failures    []DifficultyFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}
