package domain

// Seen report whether every participant other than the sender of latest has a
// read receipt for it. A thread with no other participant is never seen.
func Seen(latest *MessageView, participantIDs []string, readers []Reader) bool {
	if latest == nil {
		return false
	}
	read := make(map[string]struct{}, len(readers))
	for _, r := range readers {
		read[r.User.ID] = struct{}{}
	}

	others := 0
	for _, id := range participantIDs {
		if id == latest.SenderID {
			continue
		}
		others++
		if _, ok := read[id]; !ok {
			return false
		}
	}
	return others > 0
}
