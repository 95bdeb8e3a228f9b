package agents

// ActionKind enumerates everything an agent can decide to do.
type ActionKind string

const (
	ActionIdle                 ActionKind = "idle"
	ActionWander               ActionKind = "wander"
	ActionWalkToLocation       ActionKind = "walk_to_location"
	ActionInteractFood         ActionKind = "interact_food"
	ActionInteractRest         ActionKind = "interact_rest"
	ActionInteractKaraoke      ActionKind = "interact_karaoke"
	ActionInteractSocialHub    ActionKind = "interact_social_hub"
	ActionInteractWanderPoint  ActionKind = "interact_wander_point"
	ActionInitiateConversation ActionKind = "initiate_conversation"
	ActionJoinConversation     ActionKind = "join_conversation"
	ActionLeaveConversation    ActionKind = "leave_conversation"
	ActionAvoidAvatar          ActionKind = "avoid_avatar"
)

// AllActions lists every action kind.
var AllActions = []ActionKind{
	ActionIdle,
	ActionWander,
	ActionWalkToLocation,
	ActionInteractFood,
	ActionInteractRest,
	ActionInteractKaraoke,
	ActionInteractSocialHub,
	ActionInteractWanderPoint,
	ActionInitiateConversation,
	ActionJoinConversation,
	ActionLeaveConversation,
	ActionAvoidAvatar,
}

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	for _, a := range AllActions {
		if k == a {
			return true
		}
	}
	return false
}

// IsInteraction reports whether k is a direct use of a location.
func (k ActionKind) IsInteraction() bool {
	_, ok := interactionCategory[k]
	return ok
}

// Moves reports whether k changes the agent's position.
func (k ActionKind) Moves() bool {
	return k == ActionWander || k == ActionWalkToLocation || k == ActionAvoidAvatar
}

var interactionCategory = map[ActionKind]LocationCategory{
	ActionInteractFood:        CategoryFood,
	ActionInteractRest:        CategoryRestArea,
	ActionInteractKaraoke:     CategoryKaraoke,
	ActionInteractSocialHub:   CategorySocialHub,
	ActionInteractWanderPoint: CategoryWanderPoint,
}

// InteractionFor returns the direct interaction for a location category.
func InteractionFor(c LocationCategory) (ActionKind, bool) {
	for k, cat := range interactionCategory {
		if cat == c {
			return k, true
		}
	}
	return "", false
}

// TargetKind says what an action's target refers to.
type TargetKind string

const (
	TargetPosition TargetKind = "position"
	TargetLocation TargetKind = "location"
	TargetAvatar   TargetKind = "avatar"
)

// Target is an action's optional destination: a bare position, a location, or an avatar.
type Target struct {
	Kind     TargetKind `json:"target_type"`
	ID       string     `json:"target_id,omitempty"`
	Name     string     `json:"name,omitempty"` // display hint
	Position Position   `json:"position"`
}
