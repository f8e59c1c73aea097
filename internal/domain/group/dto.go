package group

// ContemplateRequest selects the winner of a group.
// Member is required in manual mode and matched against name or email.
type ContemplateRequest struct {
	Mode   string `json:"mode" validate:"required,contemplation_mode"`
	Member string `json:"member" validate:"omitempty,max=255"`
}

// GroupResponse is a group with its members
type GroupResponse struct {
	Group   *Group    `json:"group"`
	Members []*Member `json:"members"`
}
