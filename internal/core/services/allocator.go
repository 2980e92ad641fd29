package services

import (
	"fmt"

	"collabstream/internal/core/domain"
	apperrors "collabstream/pkg/errors"
)

// OccupiedPartners counts filled partner slots. The creator's slot is not counted.
func OccupiedPartners(session *domain.Session) int {
	n := 0
	for i := domain.CreatorSlot + 1; i < len(session.Slots) && i <= session.MaxPartners; i++ {
		if session.Slots[i].Occupied() {
			n++
		}
	}
	return n
}

// NextFreeSlot returns the lowest empty partner slot, or false when every partner slot is taken.
func NextFreeSlot(session *domain.Session) (int, bool) {
	if OccupiedPartners(session) >= session.MaxPartners {
		return 0, false
	}
	for i := domain.CreatorSlot + 1; i < len(session.Slots) && i <= session.MaxPartners; i++ {
		if !session.Slots[i].Occupied() {
			return i, true
		}
	}
	return 0, false
}

// CheckCandidate rejects users who may not join session at all, independent of the stream they bring.
func CheckCandidate(session *domain.Session, user domain.UserID) error {
	if session.Status != domain.StatusOpen {
		return apperrors.NewInvariantError(apperrors.ReasonWrongStatus,
			fmt.Sprintf("session is %s, only open sessions accept partners", session.Status))
	}
	if user == session.Creator {
		return apperrors.NewInvariantError(apperrors.ReasonSelfMatch, "cannot match into your own session")
	}
	if session.HasMember(user) {
		return apperrors.NewInvariantError(apperrors.ReasonAlreadyInSession, "user already holds a slot in this session")
	}
	return nil
}

// CheckMatch applies every match precondition that needs no upstream lookup
// and returns the slot the candidate would take.
func CheckMatch(session *domain.Session, user domain.UserID, videoID string) (int, error) {
	if err := CheckCandidate(session, user); err != nil {
		return 0, err
	}
	if videoID == session.Slots[domain.CreatorSlot].VideoID {
		return 0, apperrors.NewInvariantError(apperrors.ReasonSameStream, "partner stream must differ from the creator's stream")
	}
	idx, ok := NextFreeSlot(session)
	if !ok {
		return 0, apperrors.NewInvariantError(apperrors.ReasonSessionFull,
			fmt.Sprintf("all %d partner slots are taken", session.MaxPartners))
	}
	return idx, nil
}
