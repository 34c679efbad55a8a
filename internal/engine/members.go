package engine

import (
	"crypto/subtle"

	"github.com/greenwinther/guess-the-song2/internal/ids"
)

const defaultMemberName = "Player"

// Join adds a member, or reconnects memberID if it already belongs to the room.
// Reconnecting is idempotent: the same id comes back and no member is duplicated.
func (r *Room) Join(name, memberID string, now int64) *Member {
	name = cleanText(name)

	if m, ok := r.Members[memberID]; ok && memberID != "" {
		m.Connected = true
		m.LastSeen = now
		if name != "" {
			m.Name = name
		}
		r.repairHost(m.ID)
		return m
	}

	id := memberID
	if id == "" {
		id = ids.NewMemberID()
	}
	if name == "" {
		name = defaultMemberName
	}
	m := &Member{
		ID:        id,
		Name:      name,
		IsHost:    len(r.Members) == 0,
		Connected: true,
		LastSeen:  now,
	}
	r.addMember(m)
	r.repairHost(m.ID)
	return m
}

// MarkDisconnected flags memberID as gone. A departing host hands over to the
// first connected member in join order; with nobody else connected the host
// keeps the flag so a momentary drop does not leave the room hostless.
func (r *Room) MarkDisconnected(memberID string, now int64) error {
	m, err := r.member(memberID)
	if err != nil {
		return err
	}
	m.Connected = false
	m.LastSeen = now

	if !m.IsHost {
		return nil
	}
	for _, next := range r.OrderedMembers() {
		if next.ID != m.ID && next.Connected {
			m.IsHost = false
			next.IsHost = true
			return nil
		}
	}
	return nil
}

// AssignHost moves host from byID to targetID.
func (r *Room) AssignHost(byID, targetID string) error {
	if _, err := r.requireHost(byID); err != nil {
		return err
	}
	target, ok := r.Members[targetID]
	if !ok {
		return ErrNoSuchMember
	}
	if !target.Connected {
		return withDetails(ErrAssignFailed, map[string]any{"reason": "target disconnected"})
	}
	r.setHost(target.ID)
	return nil
}

// ReclaimHost gives host to memberID when it presents the room's host key.
func (r *Room) ReclaimHost(memberID, hostKey string) error {
	m, err := r.member(memberID)
	if err != nil {
		return err
	}
	if !r.checkHostKey(hostKey) {
		return ErrNotAllowed
	}
	r.setHost(m.ID)
	return nil
}

// ClaimController grants memberID control authority when it presents the host key.
func (r *Room) ClaimController(memberID, hostKey string) error {
	if _, err := r.member(memberID); err != nil {
		return err
	}
	if !r.checkHostKey(hostKey) {
		return ErrNotAllowed
	}
	r.ControllerID = memberID
	return nil
}

func (r *Room) ReleaseController(memberID string) error {
	if _, err := r.member(memberID); err != nil {
		return err
	}
	if r.ControllerID == "" || r.ControllerID != memberID {
		return ErrNotController
	}
	r.ControllerID = ""
	return nil
}

func (r *Room) SetHardcore(memberID string, hardcore bool) error {
	m, err := r.member(memberID)
	if err != nil {
		return err
	}
	m.Hardcore = hardcore
	return nil
}

func (r *Room) Rename(memberID, name string) error {
	m, err := r.member(memberID)
	if err != nil {
		return err
	}
	name = cleanText(name)
	if name == "" {
		return withDetails(ErrNotAllowed, map[string]any{"reason": "empty name"})
	}
	m.Name = name
	return nil
}

func (r *Room) checkHostKey(key string) bool {
	if r.HostKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(r.HostKey), []byte(key)) == 1
}

func (r *Room) setHost(id string) {
	for _, m := range r.Members {
		m.IsHost = m.ID == id
	}
}

// repairHost restores the single-host invariant after presence changes: if no
// connected member is host, preferred (or the first connected member) takes it.
func (r *Room) repairHost(preferred string) {
	ordered := r.OrderedMembers()
	hostID := ""
	for _, m := range ordered {
		if m.IsHost && m.Connected {
			hostID = m.ID
			break
		}
	}
	if hostID == "" {
		if p, ok := r.Members[preferred]; ok && p.Connected {
			hostID = p.ID
		} else {
			for _, m := range ordered {
				if m.Connected {
					hostID = m.ID
					break
				}
			}
		}
	}
	if hostID == "" {
		return
	}
	r.setHost(hostID)
}
