// Package kind is the event kind tag, the integer that tells applications
// what the content and tags of an event mean.
package kind

// T is the nostr protocol code for the type of event.
type T int

// The kinds the engine itself cares about. Application kinds are opaque
// integers to the engine; this list exists for the CLI and tests.
const (
	ProfileMetadata T = 0
	TextNote        T = 1
	RecommendServer T = 2
	FollowList      T = 3
	Deletion        T = 5
	Repost          T = 6
	Reaction        T = 7
)
