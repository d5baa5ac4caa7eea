package proof

// Authenticity (tamper detection) and uniqueness (comparison against other
// datasets) are not implemented yet and always score zero.
const (
	AuthenticityNotImplemented = 0.0
	UniquenessNotImplemented   = 0.0
)

const (
	// OwnershipScore is granted to every dataset until ownership checks exist
	OwnershipScore = 1.0

	// MembersForFullQuality is the member count at which quality reaches 1.0.
	// Quality is not clamped, larger families score above 1.0.
	MembersForFullQuality = 5

	QualityWeight   = 0.6
	OwnershipWeight = 0.4

	// ValidityThreshold must be strictly exceeded for a proof to be valid
	ValidityThreshold = 0.5
)

const (
	AttributeFamilySize = "family_size"
	MetadataDLPID       = "dlp_id"
)

// Scores holds the component scores of a dataset
type Scores struct {
	Authenticity float64
	Ownership    float64
	Quality      float64
	Uniqueness   float64
}

// ScoreMembers derives the component scores from the member count
func ScoreMembers(memberCount int) Scores {
	return Scores{
		Authenticity: AuthenticityNotImplemented,
		Ownership:    OwnershipScore,
		Quality:      Quality(memberCount),
		Uniqueness:   UniquenessNotImplemented,
	}
}

// Quality scales the member count linearly
func Quality(memberCount int) float64 {
	return float64(memberCount) / MembersForFullQuality
}

// AggregateScore combines quality and ownership into the overall score
func AggregateScore(quality, ownership float64) float64 {
	return QualityWeight*quality + OwnershipWeight*ownership
}

// IsValid applies the validity threshold
func IsValid(score float64) bool {
	return score > ValidityThreshold
}
