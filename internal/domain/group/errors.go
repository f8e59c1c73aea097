package group

import "errors"

var (
	ErrGroupNotFound          = errors.New("group not found")
	ErrGroupFull              = errors.New("group is full")
	ErrGroupNotForming        = errors.New("group is not in forming status")
	ErrAlreadyMember          = errors.New("user already participates in this group")
	ErrAlreadyContemplated    = errors.New("group already has a contemplated participant")
	ErrMemberNotFound         = errors.New("no participant matches the given identifier")
	ErrPaymentPending         = errors.New("participant payment is still pending")
	ErrNoEligibleParticipants = errors.New("group has no paid participants to draw from")
	ErrParticipantNotFound    = errors.New("participant not found")
	ErrInternal               = errors.New("internal error")
)
