package emotion

// Label is one value of the closed emotion vocabulary.
type Label string

// Family partitions the vocabulary into affect categories.
type Family string

const (
	FamilyUnknown   Family = ""
	FamilyHappiness Family = "Happiness"
	FamilySadness   Family = "Sadness"
	FamilyAnger     Family = "Anger"
	FamilyFear      Family = "Fear"
	FamilySurprise  Family = "Surprise"
	FamilyNeutral   Family = "Neutral"
	FamilyComplex   Family = "Complex"
)

type Valence string

const (
	Positive   Valence = "positive"
	Negative   Valence = "negative"
	Indistinct Valence = "neutral"
)

// Modality is the input channel a classification came from.
type Modality string

const (
	Voice Modality = "voice"
	Face  Modality = "face"
)

// Basic labels.
const (
	Angry     Label = "Angry"
	Disgusted Label = "Disgusted"
	Fearful   Label = "Fearful"
	Happy     Label = "Happy"
	Neutral   Label = "Neutral"
	Sad       Label = "Sad"
	Surprised Label = "Surprised"
)

// Nuanced labels.
const (
	Joyful       Label = "Joyful"
	Content      Label = "Content"
	Excited      Label = "Excited"
	Proud        Label = "Proud"
	Grateful     Label = "Grateful"
	Amused       Label = "Amused"
	Melancholic  Label = "Melancholic"
	Disappointed Label = "Disappointed"
	Grieving     Label = "Grieving"
	Lonely       Label = "Lonely"
	Nostalgic    Label = "Nostalgic"
	Irritated    Label = "Irritated"
	Frustrated   Label = "Frustrated"
	Indignant    Label = "Indignant"
	Defensive    Label = "Defensive"
	Resentful    Label = "Resentful"
	Anxious      Label = "Anxious"
	Overwhelmed  Label = "Overwhelmed"
	Worried      Label = "Worried"
	Nervous      Label = "Nervous"
	Insecure     Label = "Insecure"
	Amazed       Label = "Amazed"
	Confused     Label = "Confused"
	Astonished   Label = "Astonished"
	Perplexed    Label = "Perplexed"
	Curious      Label = "Curious"
	Hopeful      Label = "Hopeful"
	Bored        Label = "Bored"
	Uncertain    Label = "Uncertain"
	Embarrassed  Label = "Embarrassed"
	Confident    Label = "Confident"
	Calm         Label = "Calm"
	Distracted   Label = "Distracted"
	Thoughtful   Label = "Thoughtful"
	Interested   Label = "Interested"
	Skeptical    Label = "Skeptical"
)
