package models

import "time"

// QualityFlags records how a user watched a movie. The resolution flags form
// an ordered tier list where a higher tier implies every lower one.
type QualityFlags struct {
	OriginalLanguage bool `json:"originalLanguage"`
	ExtendedCut      bool `json:"extendedCut"`
	Theatrical       bool `json:"theatrical"`
	HD               bool `json:"hd"`
	FullHD           bool `json:"fullHd"`
	UHD4K            bool `json:"uhd4k"`
}

// resolutionTiers lists the resolution flags from lowest to highest.
// Adding a tier is a one-line change here.
func (f *QualityFlags) resolutionTiers() []*bool {
	return []*bool{&f.HD, &f.FullHD, &f.UHD4K}
}

// WithTierCascade returns a copy where every tier below the highest set tier
// is also set. Clearing a tier never clears the ones below it.
func (f QualityFlags) WithTierCascade() QualityFlags {
	tiers := f.resolutionTiers()
	for i := len(tiers) - 1; i > 0; i-- {
		if *tiers[i] {
			for j := 0; j < i; j++ {
				*tiers[j] = true
			}
			break
		}
	}
	return f
}

// QualityFlagsUpdate is a partial update; nil fields keep their current value.
type QualityFlagsUpdate struct {
	OriginalLanguage *bool `json:"originalLanguage,omitempty"`
	ExtendedCut      *bool `json:"extendedCut,omitempty"`
	Theatrical       *bool `json:"theatrical,omitempty"`
	HD               *bool `json:"hd,omitempty"`
	FullHD           *bool `json:"fullHd,omitempty"`
	UHD4K            *bool `json:"uhd4k,omitempty"`
}

// Apply merges the update onto current and enforces the tier cascade.
func (u QualityFlagsUpdate) Apply(current QualityFlags) QualityFlags {
	next := current
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&next.OriginalLanguage, u.OriginalLanguage)
	set(&next.ExtendedCut, u.ExtendedCut)
	set(&next.Theatrical, u.Theatrical)
	set(&next.HD, u.HD)
	set(&next.FullHD, u.FullHD)
	set(&next.UHD4K, u.UHD4K)
	return next.WithTierCascade()
}

// Record ties a user, a movie and a list together.
type Record struct {
	ID        int64        `json:"id"`
	UserID    string       `json:"userId"`
	MovieID   int64        `json:"movieId"`
	List      ListID       `json:"list"`
	Rating    int          `json:"rating"` // 0 = unrated
	Comment   string       `json:"comment"`
	Position  int          `json:"position"`
	Quality   QualityFlags `json:"quality"`
	CreatedAt time.Time    `json:"createdAt"`
	Movie     *Movie       `json:"movie,omitempty"`
}

// RecordPosition assigns a display position to one record.
type RecordPosition struct {
	RecordID int64 `json:"id"`
	Position int   `json:"position"`
}

// MaxRating is the top of the user rating scale.
const MaxRating = 5
