package domain

// Workflow is owned by the workflow integration; this subsystem only reads it.
type Workflow struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
	OwnerID    string `json:"ownerId"`
}

// User is an actor that can appear in version history and audit trails.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Plan  string `json:"plan"`
}

const (
	UnknownActorName = "Unknown"
	SystemActorName  = "System"
)

// ActorDisplayName resolves the name shown for an actor id.
func ActorDisplayName(actorID string, users map[string]*User) string {
	if actorID == SystemActor {
		return SystemActorName
	}
	if user, ok := users[actorID]; ok && user != nil && user.Name != "" {
		return user.Name
	}
	return UnknownActorName
}
