package app

// Coin economy constants. Pure values consumed by the state machine; nothing
// here touches state.
const (
	// StartingCoins is the balance every fresh session begins with.
	StartingCoins = 7
	// QuestionCost is charged per asked question, regardless of verdict.
	QuestionCost = 1
	// DiscoveryReward is credited when a question uncovers a new phrase.
	DiscoveryReward = 1
	// RevealCost is charged for a paid "show me this phrase" action.
	RevealCost = 1
	// RevealReward is credited when a phrase is revealed via the paid action.
	RevealReward = 3
)

// HintCost returns the price of unlocking hint index i (0-based): hint 0
// costs 1 coin, hint 1 costs 2, and so on.
func HintCost(index int) int {
	return index + 1
}
