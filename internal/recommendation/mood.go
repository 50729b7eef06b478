package recommendation

import "slices"

// Moods the face analysis reports. "suprise" is the recommender's spelling and
// is sent as is.
var Moods = []string{"happy", "angry", "fear", "sad", "disgust", "suprise", "neutral"}

// MoodUnknown is reported when the analysis could not read a face.
const MoodUnknown = "unknown"

func IsKnownMood(mood string) bool {
	return slices.Contains(Moods, mood)
}
