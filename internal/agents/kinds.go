package agents

// Kind names a life event. Kinds outside the known set are accepted and have
// zero impact.
type Kind string

const (
	KindQuizLowScore   Kind = "quiz_low_score"
	KindQuizHighScore  Kind = "quiz_high_score"
	KindTeacherPraise  Kind = "teacher_praise"
	KindPeerConflict   Kind = "peer_conflict"
	KindPeerSupport    Kind = "peer_support"
	KindParentPressure Kind = "parent_pressure"
	KindExtraHomework  Kind = "extra_homework"
	KindMockExam       Kind = "mock_exam"
	KindSelfReflection Kind = "self_reflection"
	KindClubActivity   Kind = "club_activity"
)

// KnownKinds lists the built-in event kinds in declaration order.
func KnownKinds() []Kind {
	return []Kind{
		KindQuizLowScore, KindQuizHighScore, KindTeacherPraise, KindPeerConflict,
		KindPeerSupport, KindParentPressure, KindExtraHomework, KindMockExam,
		KindSelfReflection, KindClubActivity,
	}
}

// IsNegative reports whether neuroticism sharpens the kind.
func (k Kind) IsNegative() bool {
	switch k {
	case KindQuizLowScore, KindPeerConflict, KindParentPressure, KindExtraHomework:
		return true
	}
	return false
}

// IsPositive reports whether conscientiousness boosts the kind.
func (k Kind) IsPositive() bool {
	switch k {
	case KindQuizHighScore, KindTeacherPraise, KindPeerSupport:
		return true
	}
	return false
}

// IsSocial reports whether agreeableness buffers the kind.
func (k Kind) IsSocial() bool {
	switch k {
	case KindPeerConflict, KindPeerSupport, KindClubActivity:
		return true
	}
	return false
}
