// Package harvest implements the listing harvester: the page-walk
// orchestrator that builds the record store and the resumable enrichment
// processor that attaches face-analysis attributes to stored records.
package harvest

import "math"

// Record is one harvested subject from the public listing.
type Record struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Country         string      `json:"country"`
	Arrested        string      `json:"arrested"`
	GangAffiliation string      `json:"gang_affiliation"`
	ConvictedOf     []string    `json:"convicted_of"`
	PictureURL      string      `json:"picture_url"`
	PictureLocal    string      `json:"picture_local,omitempty"`
	Enrichment      *Enrichment `json:"enrichment,omitempty"`
}

// Enriched reports whether the record already carries analysis results.
// Presence of the enrichment block is the resumability marker: once set it
// is never recomputed.
func (r Record) Enriched() bool {
	return r.Enrichment != nil
}

// AttributeScore is a dominant class label plus its confidence percentage.
type AttributeScore struct {
	Dominant   string  `json:"dominant"`
	Confidence float64 `json:"confidence"`
}

// Enrichment is the face-analysis block attached to a processed record.
// Gender/race/emotion confidences are rounded to one decimal, the face
// confidence to two.
type Enrichment struct {
	Age            int            `json:"age"`
	Gender         AttributeScore `json:"gender"`
	Race           AttributeScore `json:"race"`
	Emotion        AttributeScore `json:"emotion"`
	FaceConfidence float64        `json:"face_confidence"`
}

// Action names an attribute the analyzer is asked to estimate.
type Action string

// Actions supported by the analysis collaborator.
const (
	ActionAge     Action = "age"
	ActionGender  Action = "gender"
	ActionRace    Action = "race"
	ActionEmotion Action = "emotion"
)

// DefaultActions returns the full attribute set requested during enrichment.
func DefaultActions() []Action {
	return []Action{ActionAge, ActionGender, ActionRace, ActionEmotion}
}

// Face is the normalized analyzer output for one detected face. The raw
// collaborator response may be a single object or a collection; providers
// normalize it into this shape at the boundary.
type Face struct {
	Age             int
	DominantGender  string
	GenderScores    map[string]float64
	DominantRace    string
	RaceScores      map[string]float64
	DominantEmotion string
	EmotionScores   map[string]float64
	FaceConfidence  float64
}

// Enrichment converts the face into the rounded, stored shape.
func (f Face) Enrichment() Enrichment {
	return Enrichment{
		Age:            f.Age,
		Gender:         attributeScore(f.DominantGender, f.GenderScores),
		Race:           attributeScore(f.DominantRace, f.RaceScores),
		Emotion:        attributeScore(f.DominantEmotion, f.EmotionScores),
		FaceConfidence: roundTo(f.FaceConfidence, 2),
	}
}

func attributeScore(dominant string, scores map[string]float64) AttributeScore {
	return AttributeScore{
		Dominant:   dominant,
		Confidence: roundTo(scores[dominant], 1),
	}
}

func roundTo(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
